package users

import (
	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/remote"
)

// toWire converts a local user record to the remote wire shape.
func toWire(u *models.User) remote.User {
	permissions := make(map[string]map[string]bool, len(u.Permissions))
	for module, caps := range u.Permissions {
		row := make(map[string]bool, len(caps))
		for c, allowed := range caps {
			row[string(c)] = allowed
		}

		permissions[string(module)] = row
	}

	locations := make([]string, 0, len(u.Locations))
	for _, loc := range u.Locations {
		locations = append(locations, string(loc))
	}

	return remote.User{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Password:          u.Password,
		Role:              string(u.Role),
		CustomPermissions: u.CustomPermissions,
		Permissions:       permissions,
		Locations:         locations,
		Active:            u.Active,
		ProfilePicture:    u.ProfilePicture,
		Notes:             u.Notes,
		CreatedBy:         u.CreatedBy,
		UpdatedBy:         u.UpdatedBy,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// fromWire converts a remote user record to the local model shape.
func fromWire(u remote.User) models.User {
	permissions := make(authz.Matrix, len(u.Permissions))
	for module, caps := range u.Permissions {
		row := make(map[authz.Capability]bool, len(caps))
		for c, allowed := range caps {
			row[authz.Capability(c)] = allowed
		}

		permissions[authz.Module(module)] = row
	}

	locations := make([]authz.Location, 0, len(u.Locations))
	for _, loc := range u.Locations {
		locations = append(locations, authz.Location(loc))
	}

	return models.User{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Password:          u.Password,
		Role:              authz.Role(u.Role),
		CustomPermissions: u.CustomPermissions,
		Permissions:       permissions,
		Locations:         locations,
		Active:            u.Active,
		ProfilePicture:    u.ProfilePicture,
		Notes:             u.Notes,
		CreatedBy:         u.CreatedBy,
		UpdatedBy:         u.UpdatedBy,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}
