package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimeEntry is one timesheet line: hours a user booked on a project.
type TimeEntry struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;not null;index"`
	Username  string `gorm:"size:100"`
	ProjectID string `gorm:"size:36;not null;index"`
	Project   *Project
	// Datum is the day the hours were worked.
	Datum        time.Time `gorm:"not null"`
	Uren         float64   `gorm:"not null"`
	Omschrijving string    `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides GORM's default table naming.
func (TimeEntry) TableName() string {
	return "time_entries"
}

// BeforeCreate assigns an ID when none is set.
func (t *TimeEntry) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	return nil
}
