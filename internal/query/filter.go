package query

import "solar-field-backend/internal/model"

// Filter selects schedules for a listing or a live subscription.
// Nil pointers mean "don't care", except Archived which defaults to false.
type Filter struct {
	Archived  *bool  `json:"archived,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Bool returns a pointer to b, for building filters inline.
func Bool(b bool) *bool {
	return &b
}

// ArchivedValue is the effective archived selector; unset means live rows only.
func (f Filter) ArchivedValue() bool {
	if f.Archived == nil {
		return false
	}
	return *f.Archived
}

// Matches applies the filter to a single schedule.
func (f Filter) Matches(s *model.Schedule) bool {
	if s.Archived != f.ArchivedValue() {
		return false
	}
	if f.Completed != nil && (s.Status == model.StatusCompleted) != *f.Completed {
		return false
	}
	if f.UserID != "" && s.AssignedUserID != f.UserID {
		return false
	}
	if f.Date != "" && s.Date != f.Date {
		return false
	}
	return true
}
