package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// Verdeler represents one electrical distributor cabinet built within a
// project. The location tag is copied from the parent project at creation
// time so verdeler listings can be location-scoped without a join.
type Verdeler struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProjectID string `gorm:"size:36;not null;index"`
	Project   *Project
	// Kastnaam is the cabinet identifier on the shop floor.
	Kastnaam string `gorm:"size:100;not null"`
	// Systeem describes the rail system / fabricate.
	Systeem string `gorm:"size:100"`
	// Voeding is the supply specification (e.g. "3x400V+N 250A").
	Voeding  string `gorm:"size:100"`
	Bouwjaar int
	// Status mirrors the project workflow stages for the cabinet itself.
	Status   string         `gorm:"type:varchar(32);not null;default:'productie'"`
	Location authz.Location `gorm:"type:varchar(32)"`
	// Keuring (inspection) result, filled by the testing module.
	GekeurdDoor string `gorm:"size:100"`
	GekeurdOp   *time.Time
	Goedgekeurd bool
	Opmerkingen string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides GORM's default table naming.
func (Verdeler) TableName() string {
	return "verdelers"
}

// BeforeCreate assigns an ID when none is set.
func (v *Verdeler) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	return nil
}

// LocationTag implements authz.ScopedRecord.
func (v Verdeler) LocationTag() authz.Location {
	return v.Location
}

// WorkflowStatus exposes the workflow stage for the tester prefilter.
func (v Verdeler) WorkflowStatus() string {
	return v.Status
}
