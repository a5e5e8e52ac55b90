// Package gebruikers provides handlers for managing user accounts: CRUD,
// role assignment, the per-user capability grid and the override ledger.
package gebruikers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
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
	// Path is the base path for user management.
	Path = handler.RootPath + "gebruikers"

	// TemplateList is the template for listing users.
	TemplateList = "gebruikers/list"
	// TemplateForm is the template for creating/updating a user.
	TemplateForm = "gebruikers/form"
	// TemplateOverrides is the template for the override ledger.
	TemplateOverrides = "gebruikers/overrides"

	requestTimeout = 20 * time.Second
)

// Service provides CRUD operations for users.
type Service struct {
	handler.Service
	cfg       *config.Config
	store     *users.Store
	guard     *authz.Guard
	validator *validator.Validate
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
	s.validator = validator.New()

	app.Get(Path,
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapRead),
		s.List,
	)
	app.Get(Path+"/new",
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapCreate),
		s.New,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapCreate),
		s.Create,
	)
	app.Get(Path+"/:id/edit",
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapUpdate),
		s.Edit,
	)
	app.Post(Path+"/:id",
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapUpdate),
		s.Update,
	)
	app.Post(Path+"/:id/delete",
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapDelete),
		s.Delete,
	)
	app.Get(Path+"/:id/overrides",
		guard.RequireCapability(g, authz.ModuleGebruikers, authz.CapRead),
		s.OverrideLedger,
	)
}

func (s *Service) listNav() *navigation.Context {
	return navigation.NewContext("Gebruikers", "gebruikers", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Gebruikers", Path, true)
}

// List shows all users, local merged with the remote set.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	all, err := s.store.LoadAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load users")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, handler.Bind(sessData, s.guard, s.listNav(), fiber.Map{
			"Error": "Gebruikers konden niet geladen worden",
		}), handler.BaseLayout)
	}

	// mark remote-only entries; they are view-only until adopted locally
	local, err := s.store.LoadLocal()
	if err != nil {
		log.Error().Err(err).Msg("failed to load local users")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, handler.Bind(sessData, s.guard, s.listNav(), fiber.Map{
			"Error": "Gebruikers konden niet geladen worden",
		}), handler.BaseLayout)
	}

	localIDs := make(map[string]bool, len(local))
	for _, u := range local {
		localIDs[u.ID] = true
	}

	type row struct {
		models.User
		RemoteOnly bool
	}

	rows := make([]row, 0, len(all))
	for _, u := range all {
		rows = append(rows, row{User: u, RemoteOnly: !localIDs[u.ID]})
	}

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, s.listNav(), fiber.Map{
		"Users":         rows,
		"CurrentUserID": sessData.User.ID,
	}), handler.BaseLayout)
}

// New shows the creation form.
func (s *Service) New(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	nav := navigation.NewContext("Nieuwe gebruiker", "gebruikers", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Gebruikers", Path, false).
		AddBreadcrumb("Nieuw", Path+"/new", true)

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"User":      models.User{Role: authz.RoleStandardUser, Active: true},
		"IsCreate":  true,
		"Roles":     authz.Templates(),
		"Locations": authz.AllLocations,
		"Grid":      gridFor(nil),
	}), handler.BaseLayout)
}

type userForm struct {
	Username  string   `form:"username"  validate:"required,min=3,max=100"`
	Email     string   `form:"email"     validate:"required,email,max=255"`
	Password  string   `form:"password"`
	Role      string   `form:"role"      validate:"required"`
	Locations []string `form:"locations"`
	Active    bool     `form:"active"`
	Notes     string   `form:"notes"`
	// CustomPermissions switches the account from the role template to
	// the capability grid submitted alongside.
	CustomPermissions bool `form:"custom_permissions"`
}

// Create creates a new user.
func (s *Service) Create(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var in userForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	// the form struct is shared with Update, where an empty password
	// means keep; a new account without one could never sign in
	if in.Password == "" {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Wachtwoord is verplicht")
	}

	role := authz.Role(in.Role)
	if !authz.KnownRole(role) {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Onbekende rol")
	}

	var custom authz.Matrix
	if in.CustomPermissions {
		custom = parseGrid(c)
	}

	effective, err := authz.Resolve(role, custom)
	if err != nil {
		log.Error().Err(err).Str("role", in.Role).Msg("failed to resolve permissions")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Rechten konden niet bepaald worden")
	}

	user := models.User{
		Username:          in.Username,
		Email:             in.Email,
		Role:              role,
		CustomPermissions: in.CustomPermissions,
		Permissions:       effective,
		Locations:         parseLocations(in.Locations),
		Active:            in.Active,
		Notes:             in.Notes,
		CreatedBy:         sessData.User.Username,
	}

	user.Password = models.HashPassword(in.Password)

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := s.store.Create(ctx, &user); err != nil {
		if errors.Is(err, users.ErrDuplicateIdentity) {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Gebruikersnaam of e-mailadres is al in gebruik")
		}

		log.Error().Err(err).Msg("failed to create user")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Gebruiker kon niet aangemaakt worden")
	}

	// record grid deviations from the role template in the ledger
	if in.CustomPermissions {
		tpl, tplErr := authz.TemplateFor(role)
		if tplErr == nil {
			if overrides := authz.Diff(tpl.Matrix, effective); len(overrides) > 0 {
				if err := s.store.AppendOverrides(user.ID, sessData.User.Username, overrides); err != nil {
					log.Error().Err(err).Str("user_id", user.ID).Msg("failed to record overrides")
				}
			}
		}
	}

	return c.Redirect(Path)
}

// Edit shows the edit form for a user, including the capability grid.
func (s *Service) Edit(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	user, err := s.store.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Gebruiker kon niet geladen worden")
	}

	nav := navigation.NewContext("Gebruiker bewerken", "gebruikers", "form").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Gebruikers", Path, false).
		AddBreadcrumb(user.Username, Path+"/"+user.ID+"/edit", true)

	return c.Render(TemplateForm, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"User":      user,
		"IsCreate":  false,
		"Roles":     authz.Templates(),
		"Locations": authz.AllLocations,
		"Grid":      gridFor(user.Permissions),
	}), handler.BaseLayout)
}

// Update applies the edit form. A role change on a template-backed account
// recomputes the matrix from the catalog; a custom grid replaces it whole
// and the deviations land in the override ledger.
func (s *Service) Update(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	user, err := s.store.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Gebruiker kon niet geladen worden")
	}

	var in userForm
	if err := c.BodyParser(&in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Ongeldige formulierdata")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Controleer de gemarkeerde velden")
	}

	role := authz.Role(in.Role)
	if !authz.KnownRole(role) {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Onbekende rol")
	}

	previous := user.Permissions.Clone()

	var custom authz.Matrix
	if in.CustomPermissions {
		custom = parseGrid(c)
	}

	effective, err := authz.Resolve(role, custom)
	if err != nil {
		log.Error().Err(err).Str("role", in.Role).Msg("failed to resolve permissions")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Rechten konden niet bepaald worden")
	}

	user.Username = in.Username
	user.Email = in.Email
	user.Role = role
	user.CustomPermissions = in.CustomPermissions
	user.Permissions = effective
	user.Locations = parseLocations(in.Locations)
	user.Active = in.Active
	user.Notes = in.Notes
	user.UpdatedBy = sessData.User.Username

	if in.Password != "" {
		user.Password = models.HashPassword(in.Password)
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := s.store.Update(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateIdentity) {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Gebruikersnaam of e-mailadres is al in gebruik")
		}

		log.Error().Err(err).Msg("failed to update user")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Gebruiker kon niet bijgewerkt worden")
	}

	if overrides := authz.Diff(previous, effective); len(overrides) > 0 {
		if err := s.store.AppendOverrides(user.ID, sessData.User.Username, overrides); err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("failed to record overrides")
		}
	}

	return c.Redirect(Path)
}

// Delete removes a user.
func (s *Service) Delete(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	id := c.Params("id")

	// nobody deletes their own account
	if sessData.User.ID == id {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Je kunt je eigen account niet verwijderen")
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Redirect(Path)
		}

		log.Error().Err(err).Str("user_id", id).Msg("failed to delete user")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Gebruiker kon niet verwijderd worden")
	}

	return c.Redirect(Path)
}

// OverrideLedger shows the append-only permission change history of a user.
func (s *Service) OverrideLedger(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	user, err := s.store.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Gebruiker kon niet geladen worden")
	}

	overrides, err := s.store.Overrides(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to load override ledger")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Logboek kon niet geladen worden")
	}

	nav := navigation.NewContext("Rechtenlogboek", "gebruikers", "overrides").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Gebruikers", Path, false).
		AddBreadcrumb(user.Username, Path+"/"+user.ID+"/overrides", true)

	return c.Render(TemplateOverrides, handler.Bind(sessData, s.guard, nav, fiber.Map{
		"User":      user,
		"Overrides": overrides,
	}), handler.BaseLayout)
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, s.listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}

// GridRow is one module row of the capability grid.
type GridRow struct {
	Module authz.Module
	Cells  []GridCell
}

// GridCell is one checkbox of the capability grid.
type GridCell struct {
	Name       string
	Capability authz.Capability
	Checked    bool
}

// gridFor lays out the capability grid for the form. A nil matrix renders
// an all-unchecked grid.
func gridFor(m authz.Matrix) []GridRow {
	rows := make([]GridRow, 0, len(authz.Modules))

	for _, module := range authz.Modules {
		row := GridRow{Module: module}

		for _, capability := range authz.Capabilities {
			row.Cells = append(row.Cells, GridCell{
				Name:       gridField(module, capability),
				Capability: capability,
				Checked:    m.Allows(module, capability),
			})
		}

		rows = append(rows, row)
	}

	return rows
}

// parseGrid reads the submitted capability grid into a complete matrix.
// Unchecked boxes are simply absent from the form, so every known pair is
// written explicitly.
func parseGrid(c *fiber.Ctx) authz.Matrix {
	m := make(authz.Matrix, len(authz.Modules))

	for _, module := range authz.Modules {
		m[module] = make(map[authz.Capability]bool, len(authz.Capabilities))

		for _, capability := range authz.Capabilities {
			m[module][capability] = c.FormValue(gridField(module, capability)) == "on"
		}
	}

	return m
}

func gridField(module authz.Module, capability authz.Capability) string {
	return "perm_" + string(module) + "_" + string(capability)
}

// parseLocations keeps only known locations.
func parseLocations(in []string) []authz.Location {
	out := make([]authz.Location, 0, len(in))

	for _, raw := range in {
		if loc := authz.Location(raw); authz.KnownLocation(loc) {
			out = append(out, loc)
		}
	}

	return out
}
