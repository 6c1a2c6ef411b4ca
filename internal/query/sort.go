package query

import (
	"sort"
	"time"

	"solar-field-backend/internal/model"
	"solar-field-backend/internal/parse"
)

// Less is the canonical visit order: unlinked visits first, then date, then
// time, both compared as plain strings.
func Less(a, b *model.Schedule) bool {
	if a.IsUnlinked != b.IsUnlinked {
		return a.IsUnlinked
	}
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.Time < b.Time
}

// Sort orders list canonically in place. Ties keep their arrival order.
func Sort(list []model.Schedule) {
	sort.SliceStable(list, func(i, j int) bool {
		return Less(&list[i], &list[j])
	})
}

// Upcoming keeps visits dated today or later, preserving order.
func Upcoming(list []model.Schedule, today string) []model.Schedule {
	out := make([]model.Schedule, 0, len(list))
	for _, s := range list {
		if s.Date >= today {
			out = append(out, s)
		}
	}
	return out
}

// Today keeps visits dated exactly today, preserving order.
func Today(list []model.Schedule, today string) []model.Schedule {
	out := make([]model.Schedule, 0, len(list))
	for _, s := range list {
		if s.Date == today {
			out = append(out, s)
		}
	}
	return out
}

// LocalDate formats now as a calendar date in loc.
func LocalDate(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(parse.DateLayout)
}
