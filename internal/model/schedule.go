package model

import "time"

// ScheduleStatus is the lifecycle state of a visit.
type ScheduleStatus string

const (
	StatusScheduled  ScheduleStatus = "scheduled"
	StatusInProgress ScheduleStatus = "in-progress"
	StatusCompleted  ScheduleStatus = "completed"
	StatusCancelled  ScheduleStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Origin tells seeded fixture records apart from user-created ones.
type Origin string

const (
	OriginSeeded Origin = "seeded"
	OriginUser   Origin = "user"
)

// Schedule is one planned site visit, or an unlinked visit when IsUnlinked is set.
type Schedule struct {
	ID     string  `gorm:"primaryKey;size:64" json:"id"`
	Origin Origin  `gorm:"size:16;not null;default:user" json:"origin"`
	SiteID *string `gorm:"size:64;index" json:"siteId,omitempty"`

	Date string `gorm:"size:10;not null;index:idx_schedules_user_date,priority:2" json:"date"` // YYYY-MM-DD
	Time string `gorm:"size:16;not null" json:"time"`                                         // HH:MM AM|PM

	Title          string         `gorm:"size:256;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	AssignedUserID string         `gorm:"size:64;index:idx_schedules_user_date,priority:1" json:"assignedUserId"`
	Status         ScheduleStatus `gorm:"size:16;not null;index" json:"status"`

	IsUnlinked     bool    `gorm:"not null;default:false" json:"isUnlinked"`
	UnlinkedReason string  `gorm:"size:512" json:"unlinkedReason,omitempty"`
	LinkedSiteID   *string `gorm:"size:64" json:"linkedSiteId,omitempty"`

	CheckedInAt           *time.Time `json:"checkedInAt,omitempty"`
	CheckedOutAt          *time.Time `json:"checkedOutAt,omitempty"`
	ActualDurationMinutes *int       `json:"actualDurationMinutes,omitempty"`
	ActivityID            *string    `gorm:"size:64" json:"activityId,omitempty"`

	Archived bool `gorm:"not null;default:false;index" json:"archived"`
	Synced   bool `gorm:"not null;default:false;index" json:"synced"`
	// Version increases on every mutation so a sync pass only clears rows it sent.
	Version int64 `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime:false;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`
}

// Cancelled reports whether the visit no longer counts as a commitment.
func (s *Schedule) Cancelled() bool {
	return s.Archived || s.Status == StatusCancelled
}

// SiteRef returns the site the visit relates to: the bound site, or the
// contextual site of an unlinked visit.
func (s *Schedule) SiteRef() string {
	if s.SiteID != nil {
		return *s.SiteID
	}
	if s.LinkedSiteID != nil {
		return *s.LinkedSiteID
	}
	return ""
}
