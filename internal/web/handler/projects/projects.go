// Package projects provides handlers for panel-building projects: CRUD,
// the workflow status, CSV export and the per-location visibility rules.
package projects

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

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
	// Path is the base path for project management.
	Path = handler.RootPath + "projects"

	// TemplateList is the template for listing projects.
	TemplateList = "projects/list"
	// TemplateForm is the template for creating/updating a project.
	TemplateForm = "projects/form"
	// TemplateDetail is the template for a single project.
	TemplateDetail = "projects/detail"
)

// Service provides CRUD operations for projects.
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
	app.Get(Path+"/export",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapExport),
		s.Export,
	)
	app.Get(Path+"/new",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapCreate),
		s.New,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapCreate),
		s.Create,
	)
	app.Get(Path+"/:id",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapRead),
		s.Detail,
	)
	app.Get(Path+"/:id/edit",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapUpdate),
		s.Edit,
	)
	app.Post(Path+"/:id",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapUpdate),
		s.Update,
	)
	app.Post(Path+"/:id/delete",
		guard.RequireCapability(g, authz.ModuleProjects, authz.CapDelete),
		s.Delete,
	)
}

func listNav() *navigation.Context {
	return navigation.NewContext("Projecten", "projects", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Projecten", Path, true)
}

// visibleProjects loads projects scoped to the subject's locations, with
// an optional search on nummer and naam.
func (s *Service) visibleProjects(sub *authz.Subject, search string) ([]models.Project, error) {
	tx := s.db.Preload("Client").Order("nummer ASC")

	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		tx = tx.Where("LOWER(nummer) LIKE ? OR LOWER(naam) LIKE ?", like, like)
	}

	var projects []models.Project
	if err := tx.Find(&projects).Error; err != nil {
		return nil, err
	}

	return authz.FilterByLocation(projects, sub), nil
}

// visibleProject loads one project and applies the same location rules as
// the list; a filtered-out project is reported as not found.
func (s *Service) visibleProject(id string, sub *authz.Subject) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Client").First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if scoped := authz.FilterByLocation([]models.Project{project}, sub); len(scoped) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return &project, nil
}

// List shows the projects visible to the current user.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	search := c.Query("search", "")

	projects, err := s.visibleProjects(sessData.Subject(), search)
	if err != nil {
		log.Error().Err(err).Msg("failed to load projects")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
			"Error": "Projecten konden niet geladen worden",
		}), handler.BaseLayout)
	}

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Projects": projects,
		"Search":   search,
		"Statuses": models.ProjectStatuses,
	}), handler.BaseLayout)
}

// Export streams the visible projects as CSV.
func (s *Service) Export(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	projects, err := s.visibleProjects(sessData.Subject(), c.Query("search", ""))
	if err != nil {
		log.Error().Err(err).Msg("failed to load projects for export")

		return c.Status(fiber.StatusInternalServerError).SendString("Export mislukt")
	}

	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"nummer", "naam", "locatie", "status", "klant"})

	for _, p := range projects {
		client := ""
		if p.Client != nil {
			client = p.Client.Naam
		}

		_ = w.Write([]string{p.Nummer, p.Naam, string(p.Location), p.Status, client})
	}

	w.Flush()

	if err := w.Error(); err != nil {
		log.Error().Err(err).Msg("csv export failed")

		return c.Status(fiber.StatusInternalServerError).SendString("Export mislukt")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="projecten.csv"`)

	return c.Send(buf.Bytes())
}

// New shows the creation form.
func (s *Service) New(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Nieuw project", "projects", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Projecten", Path, false).
		AddBreadcrumb("Nieuw", Path+"/new", true)

	clients, err := s.loadClients()
	if err != nil {
		log.Error().Err(err).Msg("failed to load clients")
	}

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Project":   models.Project{Status: models.ProjectStatusOfferte},
		"IsCreate":  true,
		"Clients":   clients,
		"Locations": authz.AllLocations,
		"Statuses":  models.ProjectStatuses,
	}), handler.BaseLayout)
}

type projectForm struct {
	Nummer       string `form:"nummer"       validate:"required,max=50"`
	Naam         string `form:"naam"         validate:"required,max=255"`
	ClientID     string `form:"client_id"`
	Location     string `form:"location"     validate:"required"`
	Status       string `form:"status"       validate:"required"`
	Omschrijving string `form:"omschrijving"`
}

func (f *projectForm) valid() bool {
	if !authz.KnownLocation(authz.Location(f.Location)) {
		return false
	}

	for _, status := range models.ProjectStatuses {
		if f.Status == status {
			return true
		}
	}

	return false
}

// Create creates a new project.
func (s *Service) Create(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var in projectForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil || !in.valid() {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	project := models.Project{
		Nummer:       in.Nummer,
		Naam:         in.Naam,
		ClientID:     in.ClientID,
		Location:     authz.Location(in.Location),
		Status:       in.Status,
		Omschrijving: in.Omschrijving,
		CreatedBy:    sessData.User.Username,
	}

	if err := s.db.Create(&project).Error; err != nil {
		log.Error().Err(err).Msg("failed to create project")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project kon niet aangemaakt worden")
	}

	return c.Redirect(Path + "/" + project.ID)
}

// Detail shows one project with its verdelers and meldingen.
func (s *Service) Detail(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	project, err := s.visibleProject(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	var verdelers []models.Verdeler
	if err := s.db.Where("project_id = ?", project.ID).Order("kastnaam ASC").Find(&verdelers).Error; err != nil {
		log.Error().Err(err).Msg("failed to load verdelers")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	var meldingen []models.Melding
	if err := s.db.Where("project_id = ?", project.ID).Order("created_at DESC").Find(&meldingen).Error; err != nil {
		log.Error().Err(err).Msg("failed to load meldingen")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	nav := navigation.NewContext(project.Naam, "projects", "detail").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Projecten", Path, false).
		AddBreadcrumb(project.Nummer, Path+"/"+project.ID, true)

	return c.Render(TemplateDetail, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Project":   project,
		"Verdelers": verdelers,
		"Meldingen": meldingen,
	}), handler.BaseLayout)
}

// Edit shows the edit form.
func (s *Service) Edit(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	project, err := s.visibleProject(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	clients, err := s.loadClients()
	if err != nil {
		log.Error().Err(err).Msg("failed to load clients")
	}

	nav := navigation.NewContext("Project bewerken", "projects", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Projecten", Path, false).
		AddBreadcrumb(project.Nummer, Path+"/"+project.ID+"/edit", true)

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Project":   project,
		"IsCreate":  false,
		"Clients":   clients,
		"Locations": authz.AllLocations,
		"Statuses":  models.ProjectStatuses,
	}), handler.BaseLayout)
}

// Update applies the edit form. Changing the location re-tags the
// project's verdelers so scoped visibility stays consistent.
func (s *Service) Update(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	project, err := s.visibleProject(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	var in projectForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil || !in.valid() {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	locationChanged := project.Location != authz.Location(in.Location)

	project.Nummer = in.Nummer
	project.Naam = in.Naam
	project.ClientID = in.ClientID
	project.Location = authz.Location(in.Location)
	project.Status = in.Status
	project.Omschrijving = in.Omschrijving

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(project).Error; err != nil {
			return err
		}

		if locationChanged {
			return tx.Model(&models.Verdeler{}).
				Where("project_id = ?", project.ID).
				Update("location", project.Location).Error
		}

		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to update project")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project kon niet bijgewerkt worden")
	}

	return c.Redirect(Path + "/" + project.ID)
}

// Delete removes a project and its dependent records.
func (s *Service) Delete(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	project, err := s.visibleProject(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Project kon niet geladen worden")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Melding{}).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Verdeler{}).Error; err != nil {
			return err
		}

		return tx.Delete(project).Error
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to delete project")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project kon niet verwijderd worden")
	}

	return c.Redirect(Path)
}

func (s *Service) loadClients() ([]models.Client, error) {
	var clients []models.Client
	if err := s.db.Order("naam ASC").Find(&clients).Error; err != nil {
		return nil, err
	}

	return clients, nil
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}
