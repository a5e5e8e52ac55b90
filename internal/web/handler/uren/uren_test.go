package uren

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
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

// listViews records the entries handed to the list template.
type listViews struct {
	mu       sync.Mutex
	lastList []models.TimeEntry
}

func (*listViews) Load() error { return nil }

func (v *listViews) Render(w io.Writer, name string, data interface{}, _ ...string) error {
	if m, ok := data.(fiber.Map); ok {
		if entries, ok := m["Entries"].([]models.TimeEntry); ok {
			v.mu.Lock()
			v.lastList = entries
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
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Project{}, &models.TimeEntry{}))

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

	var s Service
	s.Init(app, cfg, db, authz.NewGuard(authz.GuardConfig{}))

	return &fixture{app: app, db: db, views: views}
}

func (f *fixture) signIn(t *testing.T, username string, role authz.Role, locations []authz.Location) (*models.User, string) {
	t.Helper()

	tpl, err := authz.TemplateFor(role)
	require.NoError(t, err)

	user := models.User{
		Username:    username,
		Email:       username + "@example.com",
		Role:        role,
		Permissions: tpl.Matrix,
		Locations:   locations,
		Active:      true,
	}
	require.NoError(t, f.db.Create(&user).Error)

	sessID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	require.NoError(t, (&websess.Data{User: user}).Write(sessID, time.Minute))

	return &user, sessID
}

func (f *fixture) get(t *testing.T, target, sess string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: sess})

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func (f *fixture) post(t *testing.T, target, sess string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "session", Value: sess})

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func seedProject(t *testing.T, db *gorm.DB, loc authz.Location) *models.Project {
	t.Helper()

	p := models.Project{Nummer: "P-100", Naam: "Kast", Location: loc, Status: models.ProjectStatusProductie}
	require.NoError(t, db.Create(&p).Error)

	return &p
}

func TestCreate_BooksHoursOnOwnAccount(t *testing.T) {
	f := setup(t)
	user, sess := f.signIn(t, "monteur1", authz.RoleStandardUser, []authz.Location{authz.LocationLeerdam})
	project := seedProject(t, f.db, authz.LocationLeerdam)

	resp := f.post(t, Path, sess, url.Values{
		"project_id":   {project.ID},
		"datum":        {"2026-08-24"},
		"uren":         {"7.5"},
		"omschrijving": {"Bedrading hoofdverdeler"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var stored models.TimeEntry
	require.NoError(t, f.db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, 7.5, stored.Uren)
	assert.Equal(t, "monteur1", stored.Username)
	assert.Equal(t, "2026-08-24", stored.Datum.Format("2006-01-02"))
}

func TestCreate_RejectsOutOfScopeProject(t *testing.T) {
	f := setup(t)
	_, sess := f.signIn(t, "monteur1", authz.RoleStandardUser, []authz.Location{authz.LocationLeerdam})
	project := seedProject(t, f.db, authz.LocationRotterdam)

	resp := f.post(t, Path, sess, url.Values{
		"project_id": {project.ID},
		"datum":      {"2026-08-24"},
		"uren":       {"8"},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, f.db.Model(&models.TimeEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_RejectsImpossibleHours(t *testing.T) {
	f := setup(t)
	_, sess := f.signIn(t, "monteur1", authz.RoleStandardUser, authz.AllLocations)
	project := seedProject(t, f.db, authz.LocationLeerdam)

	for _, uren := range []string{"0", "-2", "25"} {
		resp := f.post(t, Path, sess, url.Values{
			"project_id": {project.ID},
			"datum":      {"2026-08-24"},
			"uren":       {uren},
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "uren=%s", uren)
	}
}

func TestList_ShowsOnlyOwnEntries(t *testing.T) {
	f := setup(t)
	project := seedProject(t, f.db, authz.LocationLeerdam)

	mine, sess := f.signIn(t, "monteur1", authz.RoleStandardUser, authz.AllLocations)
	other, _ := f.signIn(t, "monteur2", authz.RoleStandardUser, authz.AllLocations)

	for _, e := range []models.TimeEntry{
		{UserID: mine.ID, Username: mine.Username, ProjectID: project.ID, Datum: time.Now(), Uren: 4},
		{UserID: other.ID, Username: other.Username, ProjectID: project.ID, Datum: time.Now(), Uren: 6},
	} {
		entry := e
		require.NoError(t, f.db.Create(&entry).Error)
	}

	resp := f.get(t, Path, sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.views.lastList, 1)
	assert.Equal(t, "monteur1", f.views.lastList[0].Username)
}

func TestList_AdminSeesAllEntries(t *testing.T) {
	f := setup(t)
	project := seedProject(t, f.db, authz.LocationLeerdam)

	worker, _ := f.signIn(t, "monteur1", authz.RoleStandardUser, authz.AllLocations)
	_, sess := f.signIn(t, "beheerder", authz.RoleAdmin, nil)

	entry := models.TimeEntry{UserID: worker.ID, Username: worker.Username, ProjectID: project.ID, Datum: time.Now(), Uren: 4}
	require.NoError(t, f.db.Create(&entry).Error)

	resp := f.get(t, Path, sess)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, f.views.lastList, 1)
}

func TestUpdate_OtherUsersEntryRedirects(t *testing.T) {
	f := setup(t)
	project := seedProject(t, f.db, authz.LocationLeerdam)

	other, _ := f.signIn(t, "monteur2", authz.RoleStandardUser, authz.AllLocations)
	_, sess := f.signIn(t, "monteur1", authz.RoleStandardUser, authz.AllLocations)

	entry := models.TimeEntry{UserID: other.ID, Username: other.Username, ProjectID: project.ID, Datum: time.Now(), Uren: 6}
	require.NoError(t, f.db.Create(&entry).Error)

	resp := f.post(t, Path+"/"+entry.ID, sess, url.Values{
		"project_id": {project.ID},
		"datum":      {"2026-08-24"},
		"uren":       {"1"},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)

	var stored models.TimeEntry
	require.NoError(t, f.db.First(&stored, "id = ?", entry.ID).Error)
	assert.Equal(t, 6.0, stored.Uren)
}

func TestDelete_OwnEntry(t *testing.T) {
	f := setup(t)
	project := seedProject(t, f.db, authz.LocationLeerdam)
	user, sess := f.signIn(t, "monteur1", authz.RoleStandardUser, authz.AllLocations)

	entry := models.TimeEntry{UserID: user.ID, Username: user.Username, ProjectID: project.ID, Datum: time.Now(), Uren: 8}
	require.NoError(t, f.db.Create(&entry).Error)

	resp := f.post(t, Path+"/"+entry.ID+"/delete", sess, nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var count int64
	require.NoError(t, f.db.Model(&models.TimeEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}
