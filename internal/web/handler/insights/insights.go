// Package insights serves the reporting page: counts per project stage,
// open meldingen and booked hours per project. Access normally comes from
// the insights module capability; the configured owner account reaches it
// through the guard's named-user exception.
package insights

import (
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
	// Path is the insights page path.
	Path = handler.RootPath + "insights"

	// TemplateName is the insights template.
	TemplateName = "insights/insights"
)

// ProjectHours is one row of the hours-per-project table.
type ProjectHours struct {
	Nummer string
	Naam   string
	Uren   float64
}

// Service provides the insights page.
type Service struct {
	handler.Service
	cfg   *config.Config
	db    *gorm.DB
	guard *authz.Guard
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, g *authz.Guard) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.guard = g

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleInsights, authz.CapRead),
		s.Get,
	)
}

// Get renders the aggregates.
func (s *Service) Get(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Insights", "insights", "overview").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Insights", Path, true)

	statusCounts := map[string]int64{}
	for _, status := range models.ProjectStatuses {
		var n int64
		if err := s.db.Model(&models.Project{}).Where("status = ?", status).Count(&n).Error; err != nil {
			log.Error().Err(err).Str("status", status).Msg("failed to count projects")
		}

		statusCounts[status] = n
	}

	var openMeldingen int64
	if err := s.db.Model(&models.Melding{}).
		Where("status <> ?", models.MeldingAfgerond).
		Count(&openMeldingen).Error; err != nil {
		log.Error().Err(err).Msg("failed to count open meldingen")
	}

	var hours []ProjectHours
	if err := s.db.Model(&models.TimeEntry{}).
		Select("projects.nummer AS nummer, projects.naam AS naam, SUM(time_entries.uren) AS uren").
		Joins("JOIN projects ON projects.id = time_entries.project_id").
		Group("projects.id").
		Order("uren DESC").
		Scan(&hours).Error; err != nil {
		log.Error().Err(err).Msg("failed to sum hours per project")
	}

	return c.Render(TemplateName, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"ProjectStatusCounts": statusCounts,
		"ProjectStatuses":     models.ProjectStatuses,
		"OpenMeldingen":       openMeldingen,
		"HoursPerProject":     hours,
	}), handler.BaseLayout)
}
