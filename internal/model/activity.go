package model

import "time"

// ActivityType names the kind of event recorded in the audit trail.
type ActivityType string

const (
	ActivitySchedule     ActivityType = "schedule"
	ActivityScheduleEdit ActivityType = "schedule-edit"
	ActivityCancel       ActivityType = "cancel"
	ActivityCheckIn      ActivityType = "check-in"
	ActivityCheckOut     ActivityType = "check-out"
	ActivityInspection   ActivityType = "inspection"
	ActivityReport       ActivityType = "report"
)

// Icon returns the display icon for the activity type.
func (t ActivityType) Icon() string {
	switch t {
	case ActivitySchedule:
		return "calendar"
	case ActivityScheduleEdit:
		return "edit"
	case ActivityCancel:
		return "x-circle"
	case ActivityCheckIn:
		return "log-in"
	case ActivityCheckOut:
		return "log-out"
	case ActivityInspection:
		return "clipboard"
	case ActivityReport:
		return "file-text"
	}
	return "activity"
}

// Activity is an append-only audit entry. Rows are never edited apart from
// the Synced flag.
type Activity struct {
	ID          string       `gorm:"primaryKey;size:64" json:"id"`
	Type        ActivityType `gorm:"size:32;not null;index" json:"type"`
	Title       string       `gorm:"size:256;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	SiteID      string       `gorm:"size:64" json:"siteId,omitempty"`
	SiteName    string       `gorm:"size:256" json:"siteName,omitempty"`
	ScheduleID  string       `gorm:"size:64;index" json:"scheduleId,omitempty"`
	UserID      string       `gorm:"size:64" json:"userId,omitempty"`
	Timestamp   time.Time    `gorm:"not null;index" json:"timestamp"`
	Icon        string       `gorm:"size:32" json:"icon"`
	Synced      bool         `gorm:"not null;default:false;index" json:"synced"`
}
