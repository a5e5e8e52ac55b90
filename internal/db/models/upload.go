package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Upload is the metadata record of a document attached to a project
// (schema drawings, test certificates, photos). The file content itself
// lives on disk under the configured upload directory.
type Upload struct {
	ID          string `gorm:"primaryKey;size:36"`
	ProjectID   string `gorm:"size:36;index"`
	Project     *Project
	Filename    string `gorm:"size:255;not null"`
	StoragePath string `gorm:"size:255;not null"`
	Size        int64
	ContentType string `gorm:"size:100"`
	UploadedBy  string `gorm:"size:100"`
	CreatedAt   time.Time
}

// TableName overrides GORM's default table naming.
func (Upload) TableName() string {
	return "uploads"
}

// BeforeCreate assigns an ID when none is set.
func (u *Upload) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	return nil
}
