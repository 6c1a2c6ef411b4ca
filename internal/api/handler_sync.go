package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solar-field-backend/internal/apperr"
)

// GetSyncStatus handles GET /api/sync/status.
func (h *Handler) GetSyncStatus(c *gin.Context) {
	if h.sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync is disabled"})
		return
	}
	c.JSON(http.StatusOK, h.sync.Refresh(c.Request.Context()))
}

// SyncNow handles POST /api/sync. The body is always the {success, message}
// result; the status tells offline (503) and remote failure (502) apart.
func (h *Handler) SyncNow(c *gin.Context) {
	if h.sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "sync is disabled"})
		return
	}
	res, err := h.sync.SyncNow(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case apperr.IsOffline(err):
		c.JSON(http.StatusServiceUnavailable, res)
	case apperr.IsSyncFailure(err):
		c.JSON(http.StatusBadGateway, res)
	default:
		h.respondError(c, err)
	}
}
