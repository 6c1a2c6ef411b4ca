package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/conflict"
	"solar-field-backend/internal/sites"
	"solar-field-backend/internal/store"
	"solar-field-backend/internal/syncer"
)

// SyncService is the part of the sync orchestrator the API drives.
type SyncService interface {
	SyncNow(ctx context.Context) (syncer.Result, error)
	Refresh(ctx context.Context) syncer.Status
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	conflicts *conflict.Validator
	sync      SyncService
	sites     *sites.Directory
	webpush   *webpush.Options
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// Deps lists what the handlers need. Sync, Sites and Webpush may be nil.
type Deps struct {
	Store    store.Store
	Sync     SyncService
	Sites    *sites.Directory
	Webpush  *webpush.Options
	Location *time.Location
	Logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:    d.Store,
		sync:     d.Sync,
		sites:    d.Sites,
		webpush:  d.Webpush,
		location: d.Location,
		logger:   d.Logger,
		now:      time.Now,
	}
	if d.Store != nil {
		h.conflicts = conflict.NewValidator(d.Store)
	}
	if h.location == nil {
		h.location = time.Local
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// respondError maps application errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindOffline:
		status = http.StatusServiceUnavailable
	case apperr.KindSyncFailure:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error(), "kind": apperr.KindOf(err)}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.ID != "" {
		body["id"] = appErr.ID
	}
	c.AbortWithStatusJSON(status, body)
}
