package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/conflict"
	"solar-field-backend/internal/model"
	"solar-field-backend/internal/mw"
	"solar-field-backend/internal/query"
	"solar-field-backend/internal/store"
)

// scheduleResponse carries a written visit and the advisory conflict check
// for its new slot.
type scheduleResponse struct {
	Schedule *model.Schedule  `json:"schedule"`
	Conflict *conflict.Result `json:"conflict,omitempty"`
}

// filterFromQuery builds a filter from ?archived=&completed=&userId=&date=.
// An authenticated technician defaults to their own visits.
func filterFromQuery(c *gin.Context) (query.Filter, error) {
	f := query.Filter{
		UserID: c.Query("userId"),
		Date:   c.Query("date"),
	}
	if f.UserID == "" {
		if id, ok := mw.AuthUserID(c); ok {
			f.UserID = id
		}
	}
	for name, dst := range map[string]**bool{"archived": &f.Archived, "completed": &f.Completed} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return query.Filter{}, apperr.Validation("%s must be a boolean", name)
		}
		*dst = query.Bool(v)
	}
	return f, nil
}

// ListSchedules handles GET /api/schedules. ?view=upcoming|today narrows the
// result to the derived views.
func (h *Handler) ListSchedules(c *gin.Context) {
	f, err := filterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	list, err := h.store.ListSchedules(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	today := query.LocalDate(h.now(), h.location)
	switch c.Query("view") {
	case "":
	case "upcoming":
		list = query.Upcoming(list, today)
	case "today":
		list = query.Today(list, today)
	default:
		h.respondError(c, apperr.Validation("unknown view %q", c.Query("view")))
		return
	}
	if list == nil {
		list = []model.Schedule{}
	}
	c.JSON(http.StatusOK, list)
}

// GetSchedule handles GET /api/schedules/:id.
func (h *Handler) GetSchedule(c *gin.Context) {
	sched, err := h.store.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// CreateSchedule handles POST /api/schedules.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var in store.ScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.AssignedUserID == "" {
		if id, ok := mw.AuthUserID(c); ok {
			in.AssignedUserID = id
		}
	}

	ctx := c.Request.Context()
	res, err := h.conflicts.Check(ctx, in.AssignedUserID, in.Date, in.Time, "")
	if err != nil && !apperr.IsValidation(err) {
		h.respondError(c, err)
		return
	}
	sched, err := h.store.CreateSchedule(ctx, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := scheduleResponse{Schedule: sched}
	if res.HasConflict {
		resp.Conflict = &res
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdateSchedule handles PATCH /api/schedules/:id.
func (h *Handler) UpdateSchedule(c *gin.Context) {
	var patch store.SchedulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	sched, err := h.store.UpdateSchedule(ctx, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := scheduleResponse{Schedule: sched}
	if !sched.Cancelled() {
		res, err := h.conflicts.Check(ctx, sched.AssignedUserID, sched.Date, sched.Time, sched.ID)
		if err == nil && res.HasConflict {
			resp.Conflict = &res
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ArchiveSchedule handles POST /api/schedules/:id/archive.
func (h *Handler) ArchiveSchedule(c *gin.Context) {
	sched, err := h.store.ArchiveSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// DeleteSchedule handles DELETE /api/schedules/:id.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.store.HardDeleteSchedule(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type checkInRequest struct {
	ActivityID string `json:"activityId"`
}

// CheckIn handles POST /api/schedules/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	sched, err := h.store.CheckIn(c.Request.Context(), c.Param("id"), req.ActivityID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// CheckOut handles POST /api/schedules/:id/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	sched, err := h.store.CheckOut(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// CheckConflict handles GET /api/conflicts?userId=&date=&time=&excludeId=.
func (h *Handler) CheckConflict(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		if id, ok := mw.AuthUserID(c); ok {
			userID = id
		}
	}
	res, err := h.conflicts.Check(c.Request.Context(), userID, c.Query("date"), c.Query("time"), c.Query("excludeId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
