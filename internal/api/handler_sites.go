package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListSites handles GET /api/sites.
func (h *Handler) ListSites(c *gin.Context) {
	if h.sites == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	list, err := h.sites.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetSite handles GET /api/sites/:id.
func (h *Handler) GetSite(c *gin.Context) {
	if h.sites == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		return
	}
	site, ok, err := h.sites.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		return
	}
	c.JSON(http.StatusOK, site)
}
