package store

import (
	"context"

	"solar-field-backend/internal/model"
)

// ScheduleInput carries the caller-settable fields of a new visit.
type ScheduleInput struct {
	SiteID         *string              `json:"siteId"`
	Date           string               `json:"date"`
	Time           string               `json:"time"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	AssignedUserID string               `json:"assignedUserId"`
	Status         model.ScheduleStatus `json:"status"`
	IsUnlinked     bool                 `json:"isUnlinked"`
	UnlinkedReason string               `json:"unlinkedReason"`
	LinkedSiteID   *string              `json:"linkedSiteId"`
}

// SchedulePatch lists the fields an update may change. Nil means unchanged.
type SchedulePatch struct {
	SiteID         *string               `json:"siteId"`
	Date           *string               `json:"date"`
	Time           *string               `json:"time"`
	Title          *string               `json:"title"`
	Description    *string               `json:"description"`
	AssignedUserID *string               `json:"assignedUserId"`
	Status         *model.ScheduleStatus `json:"status"`
	IsUnlinked     *bool                 `json:"isUnlinked"`
	UnlinkedReason *string               `json:"unlinkedReason"`
	LinkedSiteID   *string               `json:"linkedSiteId"`
}

// Empty reports whether the patch changes nothing.
func (p SchedulePatch) Empty() bool {
	return p.SiteID == nil && p.Date == nil && p.Time == nil && p.Title == nil &&
		p.Description == nil && p.AssignedUserID == nil && p.Status == nil &&
		p.IsUnlinked == nil && p.UnlinkedReason == nil && p.LinkedSiteID == nil
}

// ActivityInput is an audit entry appended by a collaborator such as an
// inspection form or a report generator.
type ActivityInput struct {
	Type        model.ActivityType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	SiteID      string             `json:"siteId"`
	ScheduleID  string             `json:"scheduleId"`
	UserID      string             `json:"userId"`
}

// EventKind names a committed store write.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventUpdated    EventKind = "updated"
	EventArchived   EventKind = "archived"
	EventDeleted    EventKind = "deleted"
	EventCheckedIn  EventKind = "checked-in"
	EventCheckedOut EventKind = "checked-out"
	EventActivity   EventKind = "activity"
	EventSynced     EventKind = "synced"
	EventSeeded     EventKind = "seeded"
)

// Event describes a committed write. Schedule and Activity are set when the
// write touched them.
type Event struct {
	Kind     EventKind
	Schedule *model.Schedule
	Activity *model.Activity
}

// Dirty reports whether the write left new unsynced data behind.
func (e Event) Dirty() bool {
	switch e.Kind {
	case EventSynced, EventSeeded, EventDeleted:
		return false
	}
	return true
}

// SiteResolver validates and names sites.
type SiteResolver interface {
	Lookup(ctx context.Context, id string) (*model.Site, bool, error)
}
