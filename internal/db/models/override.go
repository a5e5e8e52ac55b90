package models

import (
	"time"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// PermissionOverride is one line of the append-only override ledger: a
// recorded deviation from a user's role defaults. The ledger exists for
// auditability only; effective permissions are always read from the user
// record, never reconstructed from this table.
type PermissionOverride struct {
	ID            string           `gorm:"primaryKey;size:36"`
	UserID        string           `gorm:"size:36;not null;index"`
	Module        authz.Module     `gorm:"type:varchar(32);not null"`
	Capability    authz.Capability `gorm:"type:varchar(32);not null"`
	Value         bool
	Justification string `gorm:"size:255"`
	Actor         string `gorm:"size:100;not null"`
	At            time.Time
}

// TableName overrides GORM's default table naming.
func (PermissionOverride) TableName() string {
	return "permission_overrides"
}
