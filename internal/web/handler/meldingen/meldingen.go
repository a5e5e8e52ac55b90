// Package meldingen provides handlers for maintenance and malfunction
// reports: CRUD, assignment, the status workflow and the werklog.
package meldingen

import (
	"errors"
	"strings"
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
	// Path is the base path for melding management.
	Path = handler.RootPath + "meldingen"

	// TemplateList is the template for listing meldingen.
	TemplateList = "meldingen/list"
	// TemplateForm is the template for creating/updating a melding.
	TemplateForm = "meldingen/form"
)

// statusFlow lists the allowed transitions per status.
var statusFlow = map[string][]string{
	models.MeldingOpen:          {models.MeldingInBehandeling},
	models.MeldingInBehandeling: {models.MeldingOpen, models.MeldingAfgerond},
	models.MeldingAfgerond:      {},
}

// Service provides CRUD operations for meldingen.
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
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapRead),
		s.List,
	)
	app.Get(Path+"/new",
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapCreate),
		s.New,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapCreate),
		s.Create,
	)
	app.Get(Path+"/:id/edit",
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapUpdate),
		s.Edit,
	)
	app.Post(Path+"/:id",
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapUpdate),
		s.Update,
	)
	app.Post(Path+"/:id/assign",
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapAssign),
		s.Assign,
	)
	app.Post(Path+"/:id/delete",
		guard.RequireCapability(g, authz.ModuleMeldingen, authz.CapDelete),
		s.Delete,
	)
}

func listNav() *navigation.Context {
	return navigation.NewContext("Meldingen", "meldingen", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Meldingen", Path, true)
}

func (s *Service) visibleMelding(id string, sub *authz.Subject) (*models.Melding, error) {
	var melding models.Melding
	if err := s.db.Preload("Verdeler").First(&melding, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if scoped := authz.FilterByLocation([]models.Melding{melding}, sub); len(scoped) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return &melding, nil
}

// List shows the meldingen visible to the current user, optionally
// filtered on status or soort.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	tx := s.db.Preload("Verdeler").Order("created_at DESC")

	if status := c.Query("status", ""); status != "" {
		tx = tx.Where("status = ?", status)
	}

	if soort := c.Query("soort", ""); soort != "" {
		tx = tx.Where("soort = ?", soort)
	}

	var meldingen []models.Melding
	if err := tx.Find(&meldingen).Error; err != nil {
		log.Error().Err(err).Msg("failed to load meldingen")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
			"Error": "Meldingen konden niet geladen worden",
		}), handler.BaseLayout)
	}

	meldingen = authz.FilterByLocation(meldingen, sessData.Subject())

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Meldingen": meldingen,
	}), handler.BaseLayout)
}

type meldingForm struct {
	Soort        string `form:"soort"        validate:"required,oneof=onderhoud storing"`
	ProjectID    string `form:"project_id"`
	VerdelerID   string `form:"verdeler_id"`
	Titel        string `form:"titel"        validate:"required,max=255"`
	Omschrijving string `form:"omschrijving"`
}

// New shows the creation form.
func (s *Service) New(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Nieuwe melding", "meldingen", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Meldingen", Path, false).
		AddBreadcrumb("Nieuw", Path+"/new", true)

	var verdelers []models.Verdeler
	if err := s.db.Order("kastnaam ASC").Find(&verdelers).Error; err != nil {
		log.Error().Err(err).Msg("failed to load verdelers")
	}

	verdelers = authz.FilterByLocation(verdelers, sessData.Subject())

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Melding":   models.Melding{Soort: models.MeldingStoring, Status: models.MeldingOpen},
		"IsCreate":  true,
		"Verdelers": verdelers,
	}), handler.BaseLayout)
}

// Create files a new melding. The location tag is copied from the
// verdeler when one is referenced, otherwise from the project.
func (s *Service) Create(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var in meldingForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	melding := models.Melding{
		Soort:        in.Soort,
		ProjectID:    in.ProjectID,
		VerdelerID:   in.VerdelerID,
		Titel:        in.Titel,
		Omschrijving: in.Omschrijving,
		Status:       models.MeldingOpen,
		CreatedBy:    sessData.User.Username,
	}

	switch {
	case in.VerdelerID != "":
		var verdeler models.Verdeler
		if err := s.db.First(&verdeler, "id = ?", in.VerdelerID).Error; err != nil {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Verdeler niet gevonden")
		}

		melding.Location = verdeler.Location
		if melding.ProjectID == "" {
			melding.ProjectID = verdeler.ProjectID
		}
	case in.ProjectID != "":
		var project models.Project
		if err := s.db.First(&project, "id = ?", in.ProjectID).Error; err != nil {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
		}

		melding.Location = project.Location
	}

	if err := s.db.Create(&melding).Error; err != nil {
		log.Error().Err(err).Msg("failed to create melding")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Melding kon niet aangemaakt worden")
	}

	return c.Redirect(Path)
}

// Edit shows the edit form.
func (s *Service) Edit(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	melding, err := s.visibleMelding(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Melding kon niet geladen worden")
	}

	nav := navigation.NewContext("Melding bewerken", "meldingen", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Meldingen", Path, false).
		AddBreadcrumb(melding.Titel, Path+"/"+melding.ID+"/edit", true)

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"Melding":     melding,
		"IsCreate":    false,
		"Transitions": statusFlow[melding.Status],
	}), handler.BaseLayout)
}

// Update applies the edit form: status transitions and werklog additions.
// Werklog entries are appended, never rewritten.
func (s *Service) Update(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	melding, err := s.visibleMelding(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Melding kon niet geladen worden")
	}

	var in struct {
		Titel        string `form:"titel"`
		Omschrijving string `form:"omschrijving"`
		Status       string `form:"status"`
		Werklog      string `form:"werklog"`
	}

	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if in.Status != "" && in.Status != melding.Status {
		if !transitionAllowed(melding.Status, in.Status) {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige statusovergang")
		}

		melding.Status = in.Status
	}

	if in.Titel != "" {
		melding.Titel = in.Titel
	}

	if in.Omschrijving != "" {
		melding.Omschrijving = in.Omschrijving
	}

	if entry := strings.TrimSpace(in.Werklog); entry != "" {
		melding.Werklog = appendWerklog(melding.Werklog, sessData.User.Username, entry, time.Now().UTC())
	}

	if err := s.db.Save(melding).Error; err != nil {
		log.Error().Err(err).Msg("failed to update melding")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Melding kon niet bijgewerkt worden")
	}

	return c.Redirect(Path)
}

// Assign sets the assignee of a melding and moves it into behandeling.
func (s *Service) Assign(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	melding, err := s.visibleMelding(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Melding kon niet geladen worden")
	}

	assignee := c.FormValue("assigned_to")
	if assignee == "" {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Geen gebruiker opgegeven")
	}

	melding.AssignedTo = assignee

	if melding.Status == models.MeldingOpen {
		melding.Status = models.MeldingInBehandeling
	}

	if err := s.db.Save(melding).Error; err != nil {
		log.Error().Err(err).Msg("failed to assign melding")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Melding kon niet toegewezen worden")
	}

	return c.Redirect(Path)
}

// Delete removes a melding.
func (s *Service) Delete(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	melding, err := s.visibleMelding(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Melding kon niet geladen worden")
	}

	if err := s.db.Delete(melding).Error; err != nil {
		log.Error().Err(err).Msg("failed to delete melding")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Melding kon niet verwijderd worden")
	}

	return c.Redirect(Path)
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}

func transitionAllowed(from, to string) bool {
	for _, next := range statusFlow[from] {
		if next == to {
			return true
		}
	}

	return false
}

// appendWerklog adds a timestamped, attributed line to the werklog.
func appendWerklog(current, username, entry string, at time.Time) string {
	line := at.Format("2006-01-02 15:04") + " " + username + ": " + entry

	if current == "" {
		return line
	}

	return current + "\n" + line
}
