package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a customer the company builds panels for.
type Client struct {
	ID             string `gorm:"primaryKey;size:36"`
	Naam           string `gorm:"size:255;not null"`
	Contactpersoon string `gorm:"size:255"`
	Email          string `gorm:"size:255"`
	Telefoon       string `gorm:"size:50"`
	Adres          string `gorm:"size:255"`
	Plaats         string `gorm:"size:100"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides GORM's default table naming.
func (Client) TableName() string {
	return "clients"
}

// BeforeCreate assigns an ID when none is set.
func (c *Client) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	return nil
}
