package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
)

func seed(_ *config.Config, db *gorm.DB) {
	// Seed initial data if user table is empty

	var count int64
	db.Model(&models.User{}).Count(&count)

	if count != 0 {
		return
	}

	tpl, err := authz.TemplateFor(authz.RoleAdmin)
	if err != nil {
		log.Fatal().Err(err).Msg("admin role template missing")
	}

	admin := models.User{
		Username:    "admin",
		Email:       "admin@localhost",
		Password:    models.HashPassword("changeme"),
		Role:        authz.RoleAdmin,
		Permissions: tpl.Matrix,
		Active:      true,
		CreatedBy:   "seed",
	}

	if err := db.Create(&admin).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin user")
	}

	log.Info().Str("username", admin.Username).
		Msg("seeded default admin user, change the password after first login")
}

// validateStoredRoles refuses to start when the database holds a role tag
// outside the closed set. A stale tag would make every permission check
// fail closed for that user, which is better caught at boot than in the
// middle of a request.
func validateStoredRoles(db *gorm.DB) {
	var roles []authz.Role
	if err := db.Model(&models.User{}).Distinct("role").Pluck("role", &roles).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to read stored roles")
	}

	for _, role := range roles {
		if !authz.KnownRole(role) {
			log.Fatal().Str("role", string(role)).Err(authz.ErrUnknownRole).
				Msg("database holds a user with an unknown role")
		}
	}
}
