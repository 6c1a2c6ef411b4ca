package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"solar-field-backend/config"
	"solar-field-backend/internal/auth"
	"solar-field-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. When jwtService is nil
// the API is open.
func NewRouter(h *Handler, cfg config.ServerConfig, jwtService *auth.JWTService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/health", h.Health)

	api := r.Group("/api")
	if jwtService != nil {
		api.Use(mw.RequireAuth(jwtService))
	}
	api.Use(rateLimiter)
	{
		api.GET("/schedules", h.ListSchedules)
		api.POST("/schedules", h.CreateSchedule)
		api.GET("/schedules/live", h.LiveSchedules)
		api.GET("/schedules/:id", h.GetSchedule)
		api.PATCH("/schedules/:id", h.UpdateSchedule)
		api.DELETE("/schedules/:id", h.DeleteSchedule)
		api.POST("/schedules/:id/archive", h.ArchiveSchedule)
		api.POST("/schedules/:id/check-in", h.CheckIn)
		api.POST("/schedules/:id/check-out", h.CheckOut)

		api.GET("/conflicts", h.CheckConflict)

		api.GET("/activities", h.ListActivities)
		api.POST("/activities", h.AppendActivity)

		api.GET("/sync/status", h.GetSyncStatus)
		api.POST("/sync", h.SyncNow)

		// Site records change only on restart.
		api.GET("/sites", caching, h.ListSites)
		api.GET("/sites/:id", caching, h.GetSite)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
