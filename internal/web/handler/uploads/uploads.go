// Package uploads provides handlers for project documents: schema
// drawings, test certificates and photos. File content lives on disk
// under the configured upload directory; the database only holds the
// metadata records.
package uploads

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
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
	// Path is the base path for document management.
	Path = handler.RootPath + "uploads"

	// TemplateList is the template listing uploaded documents.
	TemplateList = "uploads/list"

	formFileField = "document"
)

// Service provides upload operations.
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
		guard.RequireCapability(g, authz.ModuleUploads, authz.CapRead),
		s.List,
	)
	app.Post(Path,
		guard.RequireCapability(g, authz.ModuleUploads, authz.CapCreate),
		s.Create,
	)
	app.Get(Path+"/:id/download",
		guard.RequireCapability(g, authz.ModuleUploads, authz.CapRead),
		s.Download,
	)
	app.Post(Path+"/:id/delete",
		guard.RequireCapability(g, authz.ModuleUploads, authz.CapDelete),
		s.Delete,
	)
}

func listNav() *navigation.Context {
	return navigation.NewContext("Uploads", "uploads", "list").
		AddBreadcrumb("Home", dashboard.Path, false).
		AddBreadcrumb("Uploads", Path, true)
}

// scopedProjectIDs returns the project IDs visible to the subject, or
// nil when the subject sees everything.
func (s *Service) scopedProjectIDs(sub *authz.Subject) (map[string]bool, error) {
	if sub != nil && sub.Role == authz.RoleAdmin {
		return nil, nil
	}

	var projects []models.Project
	if err := s.db.Find(&projects).Error; err != nil {
		return nil, err
	}

	projects = authz.FilterByLocation(projects, sub)

	ids := make(map[string]bool, len(projects))
	for _, p := range projects {
		ids[p.ID] = true
	}

	return ids, nil
}

// visibleUpload loads one upload record and verifies its project is in
// the caller's scope.
func (s *Service) visibleUpload(id string, sub *authz.Subject) (*models.Upload, error) {
	var upload models.Upload
	if err := s.db.Preload("Project").First(&upload, "id = ?", id).Error; err != nil {
		return nil, err
	}

	scoped, err := s.scopedProjectIDs(sub)
	if err != nil {
		return nil, err
	}

	if scoped != nil && upload.ProjectID != "" && !scoped[upload.ProjectID] {
		return nil, gorm.ErrRecordNotFound
	}

	return &upload, nil
}

// List shows the documents attached to projects in the caller's scope.
func (s *Service) List(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	var uploads []models.Upload
	if err := s.db.Preload("Project").Order("created_at DESC").Find(&uploads).Error; err != nil {
		log.Error().Err(err).Msg("failed to load uploads")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Documenten konden niet geladen worden")
	}

	scoped, err := s.scopedProjectIDs(sessData.Subject())
	if err != nil {
		log.Error().Err(err).Msg("failed to scope uploads")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Documenten konden niet geladen worden")
	}

	if scoped != nil {
		visible := uploads[:0]
		for _, u := range uploads {
			if u.ProjectID == "" || scoped[u.ProjectID] {
				visible = append(visible, u)
			}
		}

		uploads = visible
	}

	var projects []models.Project
	if err := s.db.Order("nummer ASC").Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("failed to load projects")
	}

	projects = authz.FilterByLocation(projects, sessData.Subject())

	return c.Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Uploads":    uploads,
		"Projects":   projects,
		"MaxSizeMiB": s.cfg.Uploads.MaxSizeMiB,
	}), handler.BaseLayout)
}

// Create stores an uploaded file under the upload directory and records
// its metadata. Files over the configured size limit are rejected.
func (s *Service) Create(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	file, err := c.FormFile(formFileField)
	if err != nil {
		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Geen bestand ontvangen")
	}

	if max := int64(s.cfg.Uploads.MaxSizeMiB) << 20; file.Size > max {
		return s.renderListError(c, sessData, fiber.StatusRequestEntityTooLarge, "Bestand is te groot")
	}

	projectID := c.FormValue("project_id")
	if projectID != "" {
		var project models.Project
		if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
		}

		if scoped := authz.FilterByLocation([]models.Project{project}, sessData.Subject()); len(scoped) == 0 {
			return s.renderListError(c, sessData, fiber.StatusBadRequest, "Project niet gevonden")
		}
	}

	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0o750); err != nil {
		log.Error().Err(err).Msg("failed to create upload dir")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Bestand kon niet opgeslagen worden")
	}

	// Stored under a generated name so colliding client filenames
	// never overwrite each other.
	storagePath := filepath.Join(s.cfg.Uploads.Dir, uuid.NewString()+filepath.Ext(file.Filename))

	if err := c.SaveFile(file, storagePath); err != nil {
		log.Error().Err(err).Msg("failed to save upload")

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Bestand kon niet opgeslagen worden")
	}

	upload := models.Upload{
		ProjectID:   projectID,
		Filename:    filepath.Base(file.Filename),
		StoragePath: storagePath,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
		UploadedBy:  sessData.User.Username,
	}

	if err := s.db.Create(&upload).Error; err != nil {
		log.Error().Err(err).Msg("failed to record upload")

		if rmErr := os.Remove(storagePath); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", storagePath).Msg("orphaned upload file")
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Bestand kon niet opgeslagen worden")
	}

	log.Info().
		Str("filename", upload.Filename).
		Str("project", projectID).
		Str("by", sessData.User.Username).
		Msg("document uploaded")

	return c.Redirect(Path)
}

// Download streams a stored document back under its original filename.
func (s *Service) Download(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	upload, err := s.visibleUpload(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Document kon niet geladen worden")
	}

	return c.Download(upload.StoragePath, upload.Filename)
}

// Delete removes the metadata record and the file on disk.
func (s *Service) Delete(c *fiber.Ctx) error {
	sessData, _, err := session.Current(c)
	if err != nil {
		return c.Redirect("/login")
	}

	upload, err := s.visibleUpload(c.Params("id"), sessData.Subject())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Redirect(Path)
		}

		return s.renderListError(c, sessData, fiber.StatusInternalServerError, "Document kon niet geladen worden")
	}

	if err := s.db.Delete(upload).Error; err != nil {
		log.Error().Err(err).Msg("failed to delete upload record")

		return s.renderListError(c, sessData, fiber.StatusBadRequest, "Document kon niet verwijderd worden")
	}

	if err := os.Remove(upload.StoragePath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", upload.StoragePath).Msg("failed to remove upload file")
	}

	return c.Redirect(Path)
}

func (s *Service) renderListError(c *fiber.Ctx, sessData *session.Data, status int, msg string) error {
	return c.Status(status).Render(TemplateList, handler.Bind(sessData, s.guard, listNav(), fiber.Map{
		"Error": msg,
	}), handler.BaseLayout)
}
