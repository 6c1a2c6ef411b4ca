package model

import "time"

// Site is a solar installation technicians visit.
type Site struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Capacity  string    `gorm:"size:64" json:"capacity"`
	Location  string    `gorm:"size:256" json:"location"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`
}
