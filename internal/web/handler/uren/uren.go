// Package uren provides the timesheet handlers. Users book hours on
// projects and manage their own entries; admins see everyone's.
package uren

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
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
	// Path is the base path for timesheet management.
	Path = handler.RootPath + "uren"

	// TemplateList is the template that lists time entries.
	TemplateList = "uren/list"
	// TemplateForm is the template for booking/updating hours.
	TemplateForm = "uren/form"

	// dateLayout is the form wire format for the datum field.
	dateLayout = "2006-01-02"
)

// Service provides timesheet operations.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	guard     *authz.Guard
	validator *validator.Validate
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
	s.validator = validator.New()

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.List,
	)
	app.Get(Path+"/new",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.New,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.Create,
	)
	app.Get(Path+"/:id/edit",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.Edit,
	)
	app.Post(Path+"/:id",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.Update,
	)
	app.Post(Path+"/:id/delete",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.Delete,
	)
}

func listNav() *navigation.Context {
	return navigation.NewContext("Uren", "uren", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Uren", Path, true)
}

// ownEntry loads an entry and verifies the caller may touch it: owners
// always may, admins may touch anyone's.
func (s *Service) ownEntry(id string, sessData *session.Data) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	if err := s.db.Preload("Project").First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if entry.UserID != sessData.User.ID && sessData.User.Role != authz.RoleAdmin {
		return nil, gorm.ErrRecordNotFound
	}

	return &entry, nil
}

// List shows the caller's own entries, newest first. Admins see all
// entries and can narrow to one user with ?user=.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	tx := s.db.Preload("Project").Order("datum DESC, created_at DESC")

	if sessData.User.Role == authz.RoleAdmin {
		if u := c.Query("user", ""); u != "" {
			tx = tx.Where("username = ?", u)
		}
	} else {
		tx = tx.Where("user_id = ?", sessData.User.ID)
	}

	var entries []models.TimeEntry
	if err := tx.Find(&entries).Error; err != nil {
		log.Error().Err(err).Msg("failed to load time entries")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
			"Error": "Uren konden niet geladen worden",
		}), handler.BaseLayout)
	}

	var total float64
	for _, e := range entries {
		total += e.Uren
	}

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Entries":    entries,
		"TotalHours": total,
	}), handler.BaseLayout)
}

type entryForm struct {
	ProjectID    string  `form:"project_id"   validate:"required"`
	Datum        string  `form:"datum"        validate:"required"`
	Uren         float64 `form:"uren"         validate:"required,gt=0,lte=24"`
	Omschrijving string  `form:"omschrijving" validate:"max=255"`
}

// New shows the booking form with the projects in the caller's scope.
func (s *Service) New(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Uren boeken", "uren", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Uren", Path, false).
		AddBreadcrumb("Boeken", Path+"/new", true)

	var projects []models.Project
	if err := s.db.Order("nummer ASC").Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("failed to load projects")
	}

	projects = authz.FilterByLocation(projects, sessData.Subject())

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Entry":    models.TimeEntry{Datum: time.Now()},
		"IsCreate": true,
		"Projects": projects,
	}), handler.BaseLayout)
}

// Create books hours on a project. The project must be in the caller's
// location scope.
func (s *Service) Create(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var in entryForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	datum, err := time.Parse(dateLayout, in.Datum)
	if err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige datum")
	}

	var project models.Project
	if err := s.db.First(&project, "id = ?", in.ProjectID).Error; err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
	}

	if scoped := authz.FilterByLocation([]models.Project{project}, sessData.Subject()); len(scoped) == 0 {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
	}

	entry := models.TimeEntry{
		UserID:       sessData.User.ID,
		Username:     sessData.User.Username,
		ProjectID:    in.ProjectID,
		Datum:        datum,
		Uren:         in.Uren,
		Omschrijving: in.Omschrijving,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		log.Error().Err(err).Msg("failed to create time entry")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Uren konden niet geboekt worden")
	}

	return c.Redirect(Path)
}

// Edit shows the edit form for one of the caller's own entries.
func (s *Service) Edit(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	entry, err := s.ownEntry(c.Params("id"), sessData)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Urenregel kon niet geladen worden")
	}

	nav := navigation.NewContext("Uren bewerken", "uren", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Uren", Path, false).
		AddBreadcrumb("Bewerken", Path+"/"+entry.ID+"/edit", true)

	var projects []models.Project
	if err := s.db.Order("nummer ASC").Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("failed to load projects")
	}

	projects = authz.FilterByLocation(projects, sessData.Subject())

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Entry":    entry,
		"IsCreate": false,
		"Projects": projects,
	}), handler.BaseLayout)
}

// Update rewrites one of the caller's own entries.
func (s *Service) Update(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	entry, err := s.ownEntry(c.Params("id"), sessData)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Urenregel kon niet geladen worden")
	}

	var in entryForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	datum, err := time.Parse(dateLayout, in.Datum)
	if err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige datum")
	}

	entry.ProjectID = in.ProjectID
	entry.Datum = datum
	entry.Uren = in.Uren
	entry.Omschrijving = in.Omschrijving

	if err := s.db.Save(entry).Error; err != nil {
		log.Error().Err(err).Msg("failed to update time entry")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Urenregel kon niet bijgewerkt worden")
	}

	return c.Redirect(Path)
}

// Delete removes one of the caller's own entries.
func (s *Service) Delete(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	entry, err := s.ownEntry(c.Params("id"), sessData)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Urenregel kon niet geladen worden")
	}

	if err := s.db.Delete(entry).Error; err != nil {
		log.Error().Err(err).Msg("failed to delete time entry")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Urenregel kon niet verwijderd worden")
	}

	return c.Redirect(Path)
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}
