// Package accesscodes provides handlers for client-portal access codes:
// generating, listing, revoking and validating them. Validation consults
// the remote store as well, so a code revoked elsewhere stops working
// here too.
package accesscodes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/remote"
	"github.com/paneelbeheer/paneelbeheer/internal/uniuri"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/dashboard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/middleware/guard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/navigation"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

const (
	// Path is the base path for access-code management.
	Path = handler.RootPath + "accesscodes"

	// TemplateList is the template listing access codes.
	TemplateList = "accesscodes/list"

	requestTimeout = 10 * time.Second
)

// Service provides access-code operations.
type Service struct {
	handler.Service
	cfg    *config.Config
	db     *gorm.DB
	guard  *authz.Guard
	remote *remote.Client
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes. The remote client may be nil when no remote
// store is configured; validation then runs against the local records
// only.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, g *authz.Guard, client *remote.Client) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.guard = g
	s.remote = client

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleAccessCodes, authz.CapRead),
		s.List,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleAccessCodes, authz.CapCreate),
		s.Generate,
	)
	app.Post(Path+"/:id/revoke",
		guard.RequireCapability(g, authz.ModuleAccessCodes, authz.CapUpdate),
		s.Revoke,
	)
	app.Post(Path+"/validate",
		guard.RequireCapability(g, authz.ModuleAccessCodes, authz.CapRead),
		s.Validate,
	)
}

func listNav() *navigation.Context {
	return navigation.NewContext("Toegangscodes", "accesscodes", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Toegangscodes", Path, true)
}

// List shows all codes, newest first.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var codes []models.AccessCode
	if err := s.db.Order("created_at DESC").Find(&codes).Error; err != nil {
		log.Error().Err(err).Msg("failed to load access codes")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Toegangscodes konden niet geladen worden")
	}

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Codes": codes,
		"Now":   time.Now(),
	}), handler.BaseLayout)
}

// Generate mints a new code, optionally scoped to a portal and with an
// expiry in days.
func (s *Service) Generate(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	code := models.AccessCode{
		Code:      uniuri.NewAccessCode(),
		PortalID:  c.FormValue("portal_id"),
		CreatedBy: sessData.User.Username,
	}

	if days := c.FormValue("expires_in_days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige geldigheidsduur")
		}

		expires := time.Now().UTC().AddDate(0, 0, n)
		code.ExpiresAt = &expires
	}

	if err := s.db.Create(&code).Error; err != nil {
		log.Error().Err(err).Msg("failed to create access code")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Toegangscode kon niet aangemaakt worden")
	}

	log.Info().
		Str("code", code.Code).
		Str("portal", code.PortalID).
		Str("by", sessData.User.Username).
		Msg("access code generated")

	return c.Redirect(Path)
}

// Revoke marks a code as revoked. Revocation is permanent.
func (s *Service) Revoke(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var code models.AccessCode
	if err := s.db.First(&code, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Toegangscode kon niet geladen worden")
	}

	if err := s.db.Model(&code).Update("revoked", true).Error; err != nil {
		log.Error().Err(err).Msg("failed to revoke access code")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Toegangscode kon niet ingetrokken worden")
	}

	log.Info().Str("code", code.Code).Str("by", sessData.User.Username).Msg("access code revoked")

	return c.Redirect(Path)
}

// Validate checks a code locally and, when a remote store is configured,
// remotely as well. The remote store can only narrow the verdict: a code
// the local records reject stays rejected, and a remote outage falls
// back to the local verdict.
func (s *Service) Validate(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	value := c.FormValue("code")
	if value == "" {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Geen code opgegeven")
	}

	valid, reason := s.check(c.Context(), value)

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Checked":       value,
		"CheckedValid":  valid,
		"CheckedReason": reason,
	}), handler.BaseLayout)
}

func (s *Service) check(ctx context.Context, value string) (bool, string) {
	var code models.AccessCode
	if err := s.db.First(&code, "code = ?", value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "onbekende code"
		}

		log.Error().Err(err).Msg("failed to look up access code")

		return false, "controle mislukt"
	}

	if !code.Usable(time.Now()) {
		return false, "code is ingetrokken of verlopen"
	}

	if s.remote == nil {
		return true, ""
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	verdict, err := s.remote.ValidateAccessCode(ctx, value, code.PortalID)
	if err != nil {
		log.Warn().Err(err).Msg("remote access-code validation unavailable, using local verdict")

		return true, ""
	}

	if !verdict.Valid {
		return false, verdict.Reason
	}

	return true, ""
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}
