package meldingen

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

type noOpViews struct{}

func (noOpViews) Load() error { return nil }

func (noOpViews) Render(w io.Writer, name string, _ interface{}, _ ...string) error {
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
	app *fiber.App
	db  *gorm.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Project{}, &models.Verdeler{}, &models.Melding{},
	))

	websess.Init(&testStorage{data: map[string][]byte{}}, func(id string) (*models.User, error) {
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			return nil, err
		}

		return &u, nil
	})

	app := fiber.New(fiber.Config{Views: noOpViews{}})

	cfg := &config.Config{
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}

	var s Service
	s.Init(app, cfg, db, authz.NewGuard(authz.GuardConfig{}))

	return &fixture{app: app, db: db}
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

func (f *fixture) post(t *testing.T, target, sess string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "session", Value: sess})

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func seedMelding(t *testing.T, db *gorm.DB, status string) *models.Melding {
	t.Helper()

	m := models.Melding{
		Soort:    models.MeldingStoring,
		Titel:    "Hoofdschakelaar defect",
		Status:   status,
		Location: authz.LocationLeerdam,
	}
	require.NoError(t, db.Create(&m).Error)

	return &m
}

func TestCreate_CopiesLocationFromVerdeler(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)

	project := models.Project{Nummer: "P-010", Naam: "Kast", Location: authz.LocationNaaldwijk, Status: models.ProjectStatusProductie}
	require.NoError(t, f.db.Create(&project).Error)

	verdeler := models.Verdeler{Kastnaam: "VK-1", ProjectID: project.ID, Location: project.Location, Status: models.ProjectStatusProductie}
	require.NoError(t, f.db.Create(&verdeler).Error)

	resp := f.post(t, Path, sess, url.Values{
		"soort":       {models.MeldingStoring},
		"verdeler_id": {verdeler.ID},
		"titel":       {"Relais klappert"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var stored models.Melding
	require.NoError(t, f.db.First(&stored, "titel = ?", "Relais klappert").Error)
	assert.Equal(t, authz.LocationNaaldwijk, stored.Location)
	assert.Equal(t, project.ID, stored.ProjectID)
	assert.Equal(t, models.MeldingOpen, stored.Status)
	assert.Equal(t, "u-admin", stored.CreatedBy)
}

func TestUpdate_AllowsOpenToInBehandeling(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	m := seedMelding(t, f.db, models.MeldingOpen)

	resp := f.post(t, Path+"/"+m.ID, sess, url.Values{
		"status": {models.MeldingInBehandeling},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var stored models.Melding
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, models.MeldingInBehandeling, stored.Status)
}

func TestUpdate_RejectsOpenToAfgerond(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	m := seedMelding(t, f.db, models.MeldingOpen)

	resp := f.post(t, Path+"/"+m.ID, sess, url.Values{
		"status": {models.MeldingAfgerond},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stored models.Melding
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, models.MeldingOpen, stored.Status)
}

func TestUpdate_AfgerondIsTerminal(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	m := seedMelding(t, f.db, models.MeldingAfgerond)

	resp := f.post(t, Path+"/"+m.ID, sess, url.Values{
		"status": {models.MeldingOpen},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdate_AppendsWerklog(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	m := seedMelding(t, f.db, models.MeldingInBehandeling)

	for _, entry := range []string{"Relais vervangen", "Getest onder last"} {
		resp := f.post(t, Path+"/"+m.ID, sess, url.Values{"werklog": {entry}})
		resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode)
	}

	var stored models.Melding
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)

	lines := strings.Split(stored.Werklog, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "u-admin: Relais vervangen")
	assert.Contains(t, lines[1], "u-admin: Getest onder last")
}

func TestAssign_MovesOpenIntoBehandeling(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	m := seedMelding(t, f.db, models.MeldingOpen)

	resp := f.post(t, Path+"/"+m.ID+"/assign", sess, url.Values{
		"assigned_to": {"monteur1"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var stored models.Melding
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, "monteur1", stored.AssignedTo)
	assert.Equal(t, models.MeldingInBehandeling, stored.Status)
}

func TestAssign_StandardUserLacksCapability(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleStandardUser, authz.AllLocations)
	m := seedMelding(t, f.db, models.MeldingOpen)

	resp := f.post(t, Path+"/"+m.ID+"/assign", sess, url.Values{
		"assigned_to": {"monteur1"},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdate_OutOfScopeRedirects(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleStandardUser, []authz.Location{authz.LocationRotterdam})
	m := seedMelding(t, f.db, models.MeldingOpen)

	resp := f.post(t, Path+"/"+m.ID, sess, url.Values{
		"titel": {"Aangepast"},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, Path, resp.Header.Get("Location"))

	var stored models.Melding
	require.NoError(t, f.db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, "Hoofdschakelaar defect", stored.Titel)
}
