// Package verdelers provides handlers for distributor cabinets: CRUD
// within a project and the keuring (inspection) action of the teststraat.
package verdelers

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
	// Path is the base path for verdeler management.
	Path = handler.RootPath + "verdelers"

	// TemplateList is the template for listing verdelers.
	TemplateList = "verdelers/list"
	// TemplateForm is the template for creating/updating a verdeler.
	TemplateForm = "verdelers/form"
)

// Service provides CRUD operations for verdelers.
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
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapRead),
		s.List,
	)
	app.Get(Path+"/new",
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapCreate),
		s.New,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapCreate),
		s.Create,
	)
	app.Get(Path+"/:id/edit",
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapUpdate),
		s.Edit,
	)
	app.Post(Path+"/:id",
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapUpdate),
		s.Update,
	)
	app.Post(Path+"/:id/delete",
		guard.RequireCapability(g, authz.ModuleVerdelers, authz.CapDelete),
		s.Delete,
	)

	// keuring is a testing capability, not a verdeler one
	app.Post(Path+"/:id/keuren",
		guard.RequireCapability(g, authz.ModuleTesting, authz.CapApprove),
		s.Keuren,
	)
}

func listNav() *navigation.Context {
	return navigation.NewContext("Verdelers", "verdelers", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Verdelers", Path, true)
}

// visibleVerdeler loads one verdeler under the caller's location scope.
func (s *Service) visibleVerdeler(id string, sub *authz.Subject) (*models.Verdeler, error) {
	var verdeler models.Verdeler
	if err := s.db.Preload("Project").First(&verdeler, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if scoped := authz.FilterByLocation([]models.Verdeler{verdeler}, sub); len(scoped) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return &verdeler, nil
}

// List shows the verdelers visible to the current user.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	tx := s.db.Preload("Project").Order("kastnaam ASC")

	if projectID := c.Query("project_id", ""); projectID != "" {
		tx = tx.Where("project_id = ?", projectID)
	}

	var verdelers []models.Verdeler
	if err := tx.Find(&verdelers).Error; err != nil {
		log.Error().Err(err).Msg("failed to load verdelers")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
			"Error": "Verdelers konden niet geladen worden",
		}), handler.BaseLayout)
	}

	verdelers = authz.FilterByLocation(verdelers, sessData.Subject())

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Verdelers": verdelers,
	}), handler.BaseLayout)
}

type verdelerForm struct {
	ProjectID   string `form:"project_id"  validate:"required"`
	Kastnaam    string `form:"kastnaam"    validate:"required,max=100"`
	Systeem     string `form:"systeem"     validate:"max=100"`
	Voeding     string `form:"voeding"     validate:"max=100"`
	Bouwjaar    int    `form:"bouwjaar"`
	Status      string `form:"status"`
	Opmerkingen string `form:"opmerkingen"`
}

// New shows the creation form.
func (s *Service) New(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Nieuwe verdeler", "verdelers", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Verdelers", Path, false).
		AddBreadcrumb("Nieuw", Path+"/new", true)

	var projects []models.Project
	if err := s.db.Order("nummer ASC").Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("failed to load projects")
	}

	projects = authz.FilterByLocation(projects, sessData.Subject())

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Verdeler": models.Verdeler{Status: models.ProjectStatusProductie, ProjectID: c.Query("project_id", "")},
		"IsCreate": true,
		"Projects": projects,
		"Statuses": models.ProjectStatuses,
	}), handler.BaseLayout)
}

// Create creates a new verdeler under a project. The location tag is
// copied from the parent project.
func (s *Service) Create(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var in verdelerForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	var project models.Project
	if err := s.db.First(&project, "id = ?", in.ProjectID).Error; err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
	}

	if scoped := authz.FilterByLocation([]models.Project{project}, sessData.Subject()); len(scoped) == 0 {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
	}

	status := in.Status
	if status == "" {
		status = models.ProjectStatusProductie
	}

	verdeler := models.Verdeler{
		ProjectID:   project.ID,
		Kastnaam:    in.Kastnaam,
		Systeem:     in.Systeem,
		Voeding:     in.Voeding,
		Bouwjaar:    in.Bouwjaar,
		Status:      status,
		Location:    project.Location,
		Opmerkingen: in.Opmerkingen,
	}

	if err := s.db.Create(&verdeler).Error; err != nil {
		log.Error().Err(err).Msg("failed to create verdeler")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Verdeler kon niet aangemaakt worden")
	}

	return c.Redirect("/projects/" + project.ID)
}

// Edit shows the edit form.
func (s *Service) Edit(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	verdeler, err := s.visibleVerdeler(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Verdeler kon niet geladen worden")
	}

	nav := navigation.NewContext("Verdeler bewerken", "verdelers", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Verdelers", Path, false).
		AddBreadcrumb(verdeler.Kastnaam, Path+"/"+verdeler.ID+"/edit", true)

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Verdeler": verdeler,
		"IsCreate": false,
		"Statuses": models.ProjectStatuses,
	}), handler.BaseLayout)
}

// Update applies the edit form. A fresh keuring is required after edits,
// so the inspection result is reset when cabinet details change.
func (s *Service) Update(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	verdeler, err := s.visibleVerdeler(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Verdeler kon niet geladen worden")
	}

	var in verdelerForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	specChanged := in.Systeem != verdeler.Systeem || in.Voeding != verdeler.Voeding

	verdeler.Kastnaam = in.Kastnaam
	verdeler.Systeem = in.Systeem
	verdeler.Voeding = in.Voeding
	verdeler.Bouwjaar = in.Bouwjaar
	verdeler.Opmerkingen = in.Opmerkingen

	if in.Status != "" {
		verdeler.Status = in.Status
	}

	if specChanged {
		verdeler.Goedgekeurd = false
		verdeler.GekeurdDoor = ""
		verdeler.GekeurdOp = nil
	}

	if err := s.db.Save(verdeler).Error; err != nil {
		log.Error().Err(err).Msg("failed to update verdeler")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Verdeler kon niet bijgewerkt worden")
	}

	return c.Redirect("/projects/" + verdeler.ProjectID)
}

// Delete removes a verdeler.
func (s *Service) Delete(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	verdeler, err := s.visibleVerdeler(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Verdeler kon niet geladen worden")
	}

	if err := s.db.Delete(verdeler).Error; err != nil {
		log.Error().Err(err).Msg("failed to delete verdeler")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Verdeler kon niet verwijderd worden")
	}

	return c.Redirect("/projects/" + verdeler.ProjectID)
}

// Keuren records the inspection result for a verdeler.
func (s *Service) Keuren(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	verdeler, err := s.visibleVerdeler(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Verdeler kon niet geladen worden")
	}

	var in struct {
		Goedgekeurd bool   `form:"goedgekeurd"`
		Opmerkingen string `form:"opmerkingen"`
	}

	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	now := time.Now().UTC()

	verdeler.Goedgekeurd = in.Goedgekeurd
	verdeler.GekeurdDoor = sessData.User.Username
	verdeler.GekeurdOp = &now

	if in.Opmerkingen != "" {
		verdeler.Opmerkingen = in.Opmerkingen
	}

	if err := s.db.Save(verdeler).Error; err != nil {
		log.Error().Err(err).Msg("failed to record keuring")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Keuring kon niet opgeslagen worden")
	}

	log.Info().
		Str("verdeler_id", verdeler.ID).
		Str("keurmeester", sessData.User.Username).
		Bool("goedgekeurd", in.Goedgekeurd).
		Msg("keuring recorded")

	return c.Redirect("/projects/" + verdeler.ProjectID)
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}
