// Package account lets users view their own profile and change their own
// password. Everyone gets this page regardless of role; the account module
// capabilities only cover the user's own record.
package account

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/store/users"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/dashboard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/middleware/guard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/navigation"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

const (
	// Path is the base path for the own-account page.
	Path = handler.RootPath + "account"

	// TemplateName is the profile template.
	TemplateName = "account/account"

	minPasswordLen = 10

	requestTimeout = 20 * time.Second
)

// Service provides the own-account operations.
type Service struct {
	handler.Service
	cfg   *config.Config
	store *users.Store
	guard *authz.Guard
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, store *users.Store, g *authz.Guard) {
	if app == nil || cfg == nil || store == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.store = store
	s.guard = g

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleAccount, authz.CapRead),
		s.Get,
	)
	app.Post(Path+"/password",
		guard.RequireCapability(g, authz.ModuleAccount, authz.CapUpdate),
		s.ChangePassword,
	)
}

func pageNav() *navigation.Context {
	return navigation.NewContext("Account", "account", "profile").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Account", Path, true)
}

// Get shows the caller's own profile.
func (s *Service) Get(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	user, err := s.store.Get(sessData.User.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load own account")

		return s.render(c, sessData, fiber.StatusInternalServerError, fiber.Map{
			"Error": "Account kon niet geladen worden",
		})
	}

	return s.render(c, sessData, fiber.StatusOK, fiber.Map{
		"Account": user,
	})
}

// ChangePassword verifies the current password and stores a new one. The
// write goes through the user store so the remote record follows.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	sessData, sessID, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	user, err := s.store.Get(sessData.User.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load own account")

		return s.render(c, sessData, fiber.StatusInternalServerError, fiber.Map{
			"Error": "Account kon niet geladen worden",
		})
	}

	current := c.FormValue("current_password")
	next := c.FormValue("new_password")
	repeat := c.FormValue("repeat_password")

	if !user.VerifyPassword(current) {
		return s.render(c, sessData, fiber.StatusBadRequest, fiber.Map{
			"Account": user,
			"Error":   "Huidig wachtwoord is onjuist",
		})
	}

	if len(next) < minPasswordLen {
		return s.render(c, sessData, fiber.StatusBadRequest, fiber.Map{
			"Account": user,
			"Error":   "Nieuw wachtwoord moet minimaal 10 tekens zijn",
		})
	}

	if next != repeat {
		return s.render(c, sessData, fiber.StatusBadRequest, fiber.Map{
			"Account": user,
			"Error":   "Wachtwoorden komen niet overeen",
		})
	}

	user.Password = models.HashPassword(next)
	user.UpdatedBy = user.Username

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := s.store.Update(ctx, user); err != nil {
		log.Error().Err(err).Msg("failed to change password")

		return s.render(c, sessData, fiber.StatusInternalServerError, fiber.Map{
			"Account": user,
			"Error":   "Wachtwoord kon niet gewijzigd worden",
		})
	}

	// Bump the session expiry on a successful change; the user record
	// itself is re-read from the store on every request.
	sessData.User = *user
	if err := sessData.Write(sessID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Warn().Err(err).Msg("failed to refresh session after password change")
	}

	log.Info().Str("user", user.Username).Msg("password changed")

	return s.render(c, sessData, fiber.StatusOK, fiber.Map{
		"Account": user,
		"Success": "Wachtwoord is gewijzigd",
	})
}

func (s *Service) render(c *fiber.Ctx, sessData *session.Data, status int, page fiber.Map) error {
	return c.Status(status).Render(TemplateName, handler.Bind(sessData, s.guard, pageNav(), page), handler.BaseLayout)
}
