// Package dashboard renders the landing page with the work currently in
// progress: project and verdeler counts per status and the latest meldingen,
// scoped to the locations the signed-in user may see.
package dashboard

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler"
	"github.com/paneelbeheer/paneelbeheer/internal/web/middleware/guard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/navigation"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

const (
	// Path is the path to the dashboard page.
	Path = handler.RootPath + "dashboard"

	// TemplateName is the name of the dashboard template.
	TemplateName = "dashboard/dashboard"

	recentMeldingen = 10
)

// Service is the dashboard handler service.
type Service struct {
	handler.Service
	cfg   *config.Config
	db    *gorm.DB
	guard *authz.Guard
}

// Handler is the dashboard handler.
var Handler = Service{}

// Init initializes the dashboard handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, g *authz.Guard) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg
	s.guard = g

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleDashboard, authz.CapRead),
		s.Get,
	)
}

// Get handles the dashboard page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Dashboard", "dashboard", "dashboard").
		AddBreadcrumb("Home", Path, false).
		AddBreadcrumb("Dashboard", Path, true)

	sub := sessData.Subject()

	var projects []models.Project
	if err := s.db.Order("created_at DESC").Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("failed to load projects")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateName, handler.Bind(sessData, s.guard, nav, fiber.Map{
			"Error": "Dashboard kon niet geladen worden",
		}), handler.BaseLayout)
	}

	projects = authz.FilterByLocation(projects, sub)

	var verdelers []models.Verdeler
	if err := s.db.Find(&verdelers).Error; err != nil {
		log.Error().Err(err).Msg("failed to load verdelers")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateName, handler.Bind(sessData, s.guard, nav, fiber.Map{
			"Error": "Dashboard kon niet geladen worden",
		}), handler.BaseLayout)
	}

	verdelers = authz.FilterByLocation(verdelers, sub)

	var meldingen []models.Melding
	if err := s.db.Order("created_at DESC").Find(&meldingen).Error; err != nil {
		log.Error().Err(err).Msg("failed to load meldingen")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateName, handler.Bind(sessData, s.guard, nav, fiber.Map{
			"Error": "Dashboard kon niet geladen worden",
		}), handler.BaseLayout)
	}

	meldingen = authz.FilterByLocation(meldingen, sub)

	projectCounts := countByStatus(projects)
	openMeldingen := 0

	for _, m := range meldingen {
		if m.Status != models.MeldingAfgerond {
			openMeldingen++
		}
	}

	recent := meldingen
	if len(recent) > recentMeldingen {
		recent = recent[:recentMeldingen]
	}

	return c.Render(TemplateName, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"ProjectCount":    len(projects),
		"ProjectCounts":   projectCounts,
		"VerdelerCount":   len(verdelers),
		"OpenMeldingen":   openMeldingen,
		"RecentMeldingen": recent,
	}), handler.BaseLayout)
}

// countByStatus tallies projects per workflow status.
func countByStatus(projects []models.Project) map[string]int {
	counts := make(map[string]int, len(models.ProjectStatuses))

	for _, status := range models.ProjectStatuses {
		counts[status] = 0
	}

	for _, p := range projects {
		counts[p.Status]++
	}

	return counts
}
