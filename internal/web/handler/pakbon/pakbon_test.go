package pakbon

import (
	"context"
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

// fakeRenderer returns fixed bytes and records the last request.
type fakeRenderer struct {
	mu       sync.Mutex
	pdf      []byte
	err      error
	lastSlip struct {
		projectNummer string
		kastnaam      string
		signer        string
	}
}

func (r *fakeRenderer) RenderPakbon(_ context.Context, project models.Project, verdeler models.Verdeler, signer string) ([]byte, error) {
	r.mu.Lock()
	r.lastSlip.projectNummer = project.Nummer
	r.lastSlip.kastnaam = verdeler.Kastnaam
	r.lastSlip.signer = signer
	r.mu.Unlock()

	return r.pdf, r.err
}

type fixture struct {
	app      *fiber.App
	db       *gorm.DB
	renderer *fakeRenderer
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.Project{}, &models.Verdeler{},
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

	renderer := &fakeRenderer{pdf: []byte("%PDF-1.4 fake")}

	var s Service
	s.Init(app, cfg, db, authz.NewGuard(authz.GuardConfig{}), renderer)

	return &fixture{app: app, db: db, renderer: renderer}
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

func (f *fixture) seed(t *testing.T, loc authz.Location) *models.Verdeler {
	t.Helper()

	client := models.Client{Naam: "Installatiebedrijf Jansen"}
	require.NoError(t, f.db.Create(&client).Error)

	project := models.Project{Nummer: "P-300", Naam: "Kast", ClientID: client.ID, Location: loc, Status: models.ProjectStatusProductie}
	require.NoError(t, f.db.Create(&project).Error)

	verdeler := models.Verdeler{Kastnaam: "VK-12", ProjectID: project.ID, Location: loc, Status: models.ProjectStatusProductie}
	require.NoError(t, f.db.Create(&verdeler).Error)

	return &verdeler
}

func (f *fixture) post(t *testing.T, sess string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "session", Value: sess})

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func TestGenerate_StreamsPDFAttachment(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	verdeler := f.seed(t, authz.LocationLeerdam)

	resp := f.post(t, sess, url.Values{
		"verdeler_id":   {verdeler.ID},
		"ondertekenaar": {"J. de Vries"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pakbon-P-300.pdf")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(body))

	assert.Equal(t, "P-300", f.renderer.lastSlip.projectNummer)
	assert.Equal(t, "VK-12", f.renderer.lastSlip.kastnaam)
	assert.Equal(t, "J. de Vries", f.renderer.lastSlip.signer)
}

func TestGenerate_OutOfScopeVerdelerRejected(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleStandardUser, []authz.Location{authz.LocationLeerdam})
	verdeler := f.seed(t, authz.LocationRotterdam)

	resp := f.post(t, sess, url.Values{"verdeler_id": {verdeler.ID}})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerate_RendererFailureIsBadGateway(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin, nil)
	verdeler := f.seed(t, authz.LocationLeerdam)

	f.renderer.err = assert.AnError
	f.renderer.pdf = nil

	resp := f.post(t, sess, url.Values{"verdeler_id": {verdeler.ID}})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
