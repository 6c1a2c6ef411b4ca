package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solar-field-backend/internal/model"
)

// LiveSchedules handles GET /api/schedules/live. It streams the filtered,
// sorted visit list as server-sent "schedules" events: once on connect and
// again after every write that changes it.
func (h *Handler) LiveSchedules(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	// Only the newest snapshot matters to a slow client.
	updates := make(chan []model.Schedule, 1)
	push := func(list []model.Schedule) {
		select {
		case updates <- list:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- list
		}
	}

	unsubscribe, err := h.store.Subscribe(ctx, f, push)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	h.logger.Debug("live query opened", zap.String("user_id", f.UserID), zap.String("date", f.Date))

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("live query closed", zap.String("user_id", f.UserID))
			return
		case list := <-updates:
			if list == nil {
				list = []model.Schedule{}
			}
			c.SSEvent("schedules", list)
			c.Writer.Flush()
		}
	}
}
