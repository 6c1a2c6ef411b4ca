// Package conflict detects double-booked technicians. Checks are advisory:
// callers decide whether to warn or reject.
package conflict

import (
	"context"
	"fmt"
	"strings"

	"solar-field-backend/internal/apperr"
	"solar-field-backend/internal/parse"
	"solar-field-backend/internal/query"
)

// BufferMinutes is the protection window around every commitment.
const BufferMinutes = 5

// Result is the outcome of a conflict check.
type Result struct {
	HasConflict bool   `json:"hasConflict"`
	Reason      string `json:"reason,omitempty"`
	// ConflictingID is the visit the proposal collides with.
	ConflictingID string `json:"conflictingId,omitempty"`
}

// Validator checks proposed visit times against existing commitments.
type Validator struct {
	lister query.Lister
}

// NewValidator creates a validator reading through lister.
func NewValidator(lister query.Lister) *Validator {
	return &Validator{lister: lister}
}

// Check reports whether userID already has a live, non-cancelled visit on
// date within BufferMinutes of clock. excludeID skips the visit being edited.
func (v *Validator) Check(ctx context.Context, userID, date, clock, excludeID string) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, nil
	}
	if _, err := parse.ParseDate(date); err != nil {
		return Result{}, apperr.Validation("%v", err)
	}
	proposed, err := parse.ParseClock(clock)
	if err != nil {
		return Result{}, apperr.Validation("%v", err)
	}

	list, err := v.lister.ListSchedules(ctx, query.Filter{UserID: userID, Date: date})
	if err != nil {
		return Result{}, fmt.Errorf("failed to load commitments: %w", err)
	}
	for i := range list {
		existing := &list[i]
		if existing.ID == excludeID || existing.Cancelled() {
			continue
		}
		minutes, err := parse.ParseClock(existing.Time)
		if err != nil {
			continue
		}
		if abs(proposed-minutes) <= BufferMinutes {
			return Result{
				HasConflict:   true,
				Reason:        fmt.Sprintf("%q is already scheduled at %s", existing.Title, existing.Time),
				ConflictingID: existing.ID,
			}, nil
		}
	}
	return Result{}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
