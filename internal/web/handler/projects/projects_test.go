package projects

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	websess "github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

// listViews records the number of projects handed to the list template.
type listViews struct {
	mu       sync.Mutex
	lastList []models.Project
}

func (*listViews) Load() error { return nil }

func (v *listViews) Render(w io.Writer, name string, data interface{}, _ ...string) error {
	if m, ok := data.(fiber.Map); ok {
		if projects, ok := m["Projects"].([]models.Project); ok {
			v.mu.Lock()
			v.lastList = projects
			v.mu.Unlock()
		}
	}

	_, _ = io.WriteString(w, name)

	return nil
}

type testStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (s *testStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data[key]...), nil
}

func (s *testStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), val...)
	return nil
}

func (s *testStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *testStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string][]byte{}
	return nil
}

func (s *testStorage) Close() error { return nil }

type fixture struct {
	app   *fiber.App
	db    *gorm.DB
	views *listViews
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.Project{}, &models.Verdeler{}, &models.Melding{},
	))

	websess.Init(&testStorage{data: map[string][]byte{}}, func(id string) (*models.User, error) {
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			return nil, err
		}

		return &u, nil
	})

	views := &listViews{}
	app := fiber.New(fiber.Config{Views: views})

	cfg := &config.Config{
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}

	g := authz.NewGuard(authz.GuardConfig{})

	var s Service
	s.Init(app, cfg, db, g)

	return &fixture{app: app, db: db, views: views}
}

func (f *fixture) signIn(t *testing.T, role authz.Role, locations []authz.Location) string {
	t.Helper()

	tpl, err := authz.TemplateFor(role)
	require.NoError(t, err)

	user := models.User{
		Username:    "u-" + string(role),
		Email:       string(role) + "@example.com",
		Role:        role,
		Permissions: tpl.Matrix,
		Locations:   locations,
		Active:      true,
	}
	require.NoError(t, f.db.Create(&user).Error)

	sessID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	require.NoError(t, (&websess.Data{User: user}).Write(sessID, time.Minute))

	return sessID
}

func (f *fixture) get(t *testing.T, target, sess string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: sess})

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func seedProjects(t *testing.T, db *gorm.DB) {
	t.Helper()

	seed := []models.Project{
		{Nummer: "P-001", Naam: "Kast Leerdam", Location: authz.LocationLeerdam, Status: models.ProjectStatusProductie},
		{Nummer: "P-002", Naam: "Kast Naaldwijk", Location: authz.LocationNaaldwijk, Status: models.ProjectStatusTesten},
		{Nummer: "P-003", Naam: "Kast Rotterdam", Location: authz.LocationRotterdam, Status: models.ProjectStatusOfferte},
	}

	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}
}

func TestList_ScopesToUserLocations(t *testing.T) {
	f := setup(t)
	seedProjects(t, f.db)

	sess := f.signIn(t, authz.RoleStandardUser, []authz.Location{authz.LocationLeerdam})

	resp := f.get(t, Path, sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.views.lastList, 1)
	assert.Equal(t, "P-001", f.views.lastList[0].Nummer)
}

func TestList_AdminSeesAllLocations(t *testing.T) {
	f := setup(t)
	seedProjects(t, f.db)

	sess := f.signIn(t, authz.RoleAdmin, nil)

	resp := f.get(t, Path, sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.views.lastList, 3)
}

func TestList_TesterSeesOnlyTestenStage(t *testing.T) {
	f := setup(t)
	seedProjects(t, f.db)

	sess := f.signIn(t, authz.RoleTester, authz.AllLocations)

	resp := f.get(t, Path, sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.views.lastList, 1)
	assert.Equal(t, models.ProjectStatusTesten, f.views.lastList[0].Status)
}

func TestList_EmptyLocationSetSeesNothing(t *testing.T) {
	f := setup(t)
	seedProjects(t, f.db)

	sess := f.signIn(t, authz.RoleStandardUser, nil)

	resp := f.get(t, Path, sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.views.lastList)
}

func TestDetail_OutOfScopeRedirects(t *testing.T) {
	f := setup(t)

	project := models.Project{
		Nummer:   "P-009",
		Naam:     "Buiten zicht",
		Location: authz.LocationRotterdam,
		Status:   models.ProjectStatusProductie,
	}
	require.NoError(t, f.db.Create(&project).Error)

	sess := f.signIn(t, authz.RoleStandardUser, []authz.Location{authz.LocationLeerdam})

	resp := f.get(t, Path+"/"+project.ID, sess)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, Path, resp.Header.Get("Location"))
}

func TestExport_StreamsCSV(t *testing.T) {
	f := setup(t)
	seedProjects(t, f.db)

	sess := f.signIn(t, authz.RoleAdmin, nil)

	resp := f.get(t, Path+"/export", sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(body), "nummer,naam,locatie,status,klant"))
	assert.Contains(t, string(body), "P-002")
}
