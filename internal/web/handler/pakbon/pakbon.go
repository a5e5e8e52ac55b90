// Package pakbon provides the packing-slip handlers: pick a project and
// verdeler, optionally name a signer, and stream the rendered PDF.
package pakbon

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/dashboard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/middleware/guard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/navigation"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

const (
	// Path is the base path for packing-slip generation.
	Path = handler.RootPath + "pakbon"

	// TemplateForm is the project/verdeler selection form.
	TemplateForm = "pakbon/form"

	renderTimeout = 30 * time.Second
)

// Renderer converts pakbon data into PDF bytes.
type Renderer interface {
	RenderPakbon(ctx context.Context, project models.Project, verdeler models.Verdeler, signer string) ([]byte, error)
}

// Service provides packing-slip generation.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	guard    *authz.Guard
	renderer Renderer
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, g *authz.Guard, renderer Renderer) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.guard = g
	s.renderer = renderer

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapExport),
		s.Form,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapExport),
		s.Generate,
	)
}

func formNav() *navigation.Context {
	return navigation.NewContext("Pakbon", "verdelers", "pakbon").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Verdelers", "/verdelers", false).
		AddBreadcrumb("Pakbon", Path, true)
}

// Form shows the selection form with the verdelers in the caller's scope.
func (s *Service) Form(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var verdelers []models.Verdeler
	if err := s.db.Preload("Project").Order("kastnaam ASC").Find(&verdelers).Error; err != nil {
		log.Error().Err(err).Msg("failed to load verdelers")

		return s.renderFormError(c, sessData, fiber.StatusInternalServerError, "Verdelers konden niet geladen worden")
	}

	verdelers = authz.FilterByLocation(verdelers, sessData.Subject())

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, formNav(), fiber.Map{
		"Verdelers": verdelers,
	}), handler.BaseLayout)
}

// Generate renders the packing slip for the chosen verdeler and streams
// it as a PDF attachment.
func (s *Service) Generate(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	verdelerID := c.FormValue("verdeler_id")
	if verdelerID == "" {
		return s.renderFormError(c, sessData, fiber.StatusBadRequest, "Geen verdeler gekozen")
	}

	var verdeler models.Verdeler
	if err := s.db.First(&verdeler, "id = ?", verdelerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.renderFormError(c, sessData, fiber.StatusBadRequest, "Verdeler niet gevonden")
		}

		return s.renderFormError(c, sessData, fiber.StatusInternalServerError, "Verdeler kon niet geladen worden")
	}

	if scoped := authz.FilterByLocation([]models.Verdeler{verdeler}, sessData.Subject()); len(scoped) == 0 {
		return s.renderFormError(c, sessData, fiber.StatusBadRequest, "Verdeler niet gevonden")
	}

	var project models.Project
	if err := s.db.Preload("Client").First(&project, "id = ?", verdeler.ProjectID).Error; err != nil {
		return s.renderFormError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	ctx, cancel := context.WithTimeout(c.Context(), renderTimeout)
	defer cancel()

	pdf, err := s.renderer.RenderPakbon(ctx, project, verdeler, c.FormValue("ondertekenaar"))
	if err != nil {
		log.Error().Err(err).Str("verdeler", verdeler.Kastnaam).Msg("failed to render pakbon")

		return s.renderFormError(c, sessData, fiber.StatusBadGateway, "Pakbon kon niet gegenereerd worden")
	}

	log.Info().
		Str("project", project.Nummer).
		Str("verdeler", verdeler.Kastnaam).
		Str("by", sessData.User.Username).
		Msg("pakbon generated")

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="pakbon-`+project.Nummer+`.pdf"`)

	return c.Send(pdf)
}

func (s *Service) renderFormError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateForm, handler.Bind(sessData, s.guard, formNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}
