package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessCode grants client-portal access to one project scope. Codes are
// generated locally and validated against the remote store as well, so a
// code revoked elsewhere stops working here.
type AccessCode struct {
	ID   string `gorm:"primaryKey;size:36"`
	Code string `gorm:"unique;size:20;not null"`
	// PortalID scopes the code to one client portal / project.
	PortalID  string `gorm:"size:36;index"`
	ExpiresAt *time.Time
	Revoked   bool
	CreatedBy string `gorm:"size:100"`
	CreatedAt time.Time
}

// TableName overrides GORM's default table naming.
func (AccessCode) TableName() string {
	return "access_codes"
}

// BeforeCreate assigns an ID when none is set.
func (a *AccessCode) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	return nil
}

// Usable reports whether the code is neither revoked nor expired.
func (a AccessCode) Usable(now time.Time) bool {
	if a.Revoked {
		return false
	}

	if a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
		return false
	}

	return true
}
