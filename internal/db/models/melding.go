package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// Melding kinds.
const (
	MeldingOnderhoud = "onderhoud"
	MeldingStoring   = "storing"
)

// Melding statuses.
const (
	MeldingOpen          = "open"
	MeldingInBehandeling = "in_behandeling"
	MeldingAfgerond      = "afgerond"
)

// Melding is a maintenance or malfunction report against a verdeler.
type Melding struct {
	ID           string `gorm:"primaryKey;size:36"`
	Soort        string `gorm:"type:varchar(20);not null"`
	ProjectID    string `gorm:"size:36;index"`
	VerdelerID   string `gorm:"size:36;index"`
	Verdeler     *Verdeler
	Titel        string `gorm:"size:255;not null"`
	Omschrijving string `gorm:"type:text"`
	Status       string `gorm:"type:varchar(32);not null;default:'open'"`
	// AssignedTo is the username the melding is assigned to, if any.
	AssignedTo string `gorm:"size:100"`
	// Werklog collects free-text progress notes.
	Werklog   string         `gorm:"type:text"`
	Location  authz.Location `gorm:"type:varchar(32)"`
	CreatedBy string         `gorm:"size:100"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides GORM's default table naming.
func (Melding) TableName() string {
	return "meldingen"
}

// BeforeCreate assigns an ID when none is set.
func (m *Melding) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	return nil
}

// LocationTag implements authz.ScopedRecord.
func (m Melding) LocationTag() authz.Location {
	return m.Location
}
