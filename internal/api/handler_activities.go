package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solar-field-backend/internal/model"
	"solar-field-backend/internal/mw"
	"solar-field-backend/internal/store"
)

// ListActivities handles GET /api/activities?limit=N, newest first.
func (h *Handler) ListActivities(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	list, err := h.store.ListActivities(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []model.Activity{}
	}
	c.JSON(http.StatusOK, list)
}

// AppendActivity handles POST /api/activities for entries such as submitted
// inspections or generated reports.
func (h *Handler) AppendActivity(c *gin.Context) {
	var in store.ActivityInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.UserID == "" {
		if id, ok := mw.AuthUserID(c); ok {
			in.UserID = id
		}
	}
	act, err := h.store.AppendActivity(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, act)
}
