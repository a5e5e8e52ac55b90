// Package models contains database model definitions.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// Project workflow stages, in order.
const (
	ProjectStatusOfferte    = "offerte"
	ProjectStatusProductie  = "productie"
	ProjectStatusTesten     = "testen"
	ProjectStatusOpgeleverd = "opgeleverd"
)

// ProjectStatuses lists the workflow stages in order.
var ProjectStatuses = []string{
	ProjectStatusOfferte,
	ProjectStatusProductie,
	ProjectStatusTesten,
	ProjectStatusOpgeleverd,
}

// Project represents a panel-building project. Projects are tagged with the
// site they are built at; that tag drives location-scoped visibility.
type Project struct {
	ID string `gorm:"primaryKey;size:36"`
	// Nummer is the unique human-facing project number.
	Nummer string `gorm:"unique;size:50;not null"`
	Naam   string `gorm:"size:255;not null"`
	// ClientID references the client the project is built for.
	ClientID string `gorm:"size:36"`
	Client   *Client
	// Location is the site the project belongs to.
	Location authz.Location `gorm:"type:varchar(32)"`
	// Status is the workflow stage.
	Status       string `gorm:"type:varchar(32);not null;default:'offerte'"`
	Omschrijving string `gorm:"type:text"`
	CreatedBy    string `gorm:"size:100"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides GORM's default table naming.
func (Project) TableName() string {
	return "projects"
}

// BeforeCreate assigns an ID when none is set.
func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	return nil
}

// LocationTag implements authz.ScopedRecord.
func (p Project) LocationTag() authz.Location {
	return p.Location
}

// WorkflowStatus exposes the workflow stage for the tester prefilter.
func (p Project) WorkflowStatus() string {
	return p.Status
}
