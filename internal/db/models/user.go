package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// User represents a user account. Accounts authenticate with a local
// Argon2id-hashed password; the cleartext is never stored. Each user
// carries an effective capability matrix: either their role's default
// (CustomPermissions false) or a custom matrix replacing it verbatim.
type User struct {
	// ID is an opaque unique identifier (UUID).
	ID string `gorm:"primaryKey;size:36"`
	// Username is the unique login name.
	Username string `gorm:"unique;size:100;not null"`
	// Email is the user's unique email address.
	Email string `gorm:"unique;size:255;not null"`
	// Password is the Argon2id hash of the user's password.
	Password string `gorm:"size:255"`
	// Role is the assigned role tag; immutable except by an explicit
	// role-change action in the user edit workflow.
	Role authz.Role `gorm:"type:varchar(32);not null"`
	// CustomPermissions marks whether Permissions deviates from the role
	// template. When false, a role change recomputes Permissions from the
	// catalog; when true the custom matrix is preserved.
	CustomPermissions bool
	// Permissions is the effective capability matrix.
	Permissions authz.Matrix `gorm:"serializer:json"`
	// Locations is the set of sites the user's record visibility is scoped
	// to. Empty denies access to all location-scoped records.
	Locations []authz.Location `gorm:"serializer:json"`
	// Active indicates whether the account may log in.
	Active bool
	// ProfilePicture references the user's avatar upload, if any.
	ProfilePicture string `gorm:"size:255"`
	// Notes holds free-text remarks about the account.
	Notes string `gorm:"type:text"`
	// CreatedBy and UpdatedBy record the acting username.
	CreatedBy string `gorm:"size:100"`
	UpdatedBy string `gorm:"size:100"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides GORM's default table naming.
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an ID when none is set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	return nil
}

// Subject projects the user onto the fields the access guard evaluates.
func (u *User) Subject() *authz.Subject {
	if u == nil {
		return nil
	}

	return &authz.Subject{
		Username:    u.Username,
		Role:        u.Role,
		Permissions: u.Permissions,
		Locations:   u.Locations,
	}
}

// HashPassword hashes a plaintext password using Argon2id with the default
// parameters. Used when creating accounts or changing passwords.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the stored hash
// using constant-time comparison.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
