package viewas

import (
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
	"github.com/paneelbeheer/paneelbeheer/internal/events"
	websess "github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

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
	bus *events.Bus
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	websess.Init(&testStorage{data: map[string][]byte{}}, func(id string) (*models.User, error) {
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			return nil, err
		}

		return &u, nil
	})

	app := fiber.New()

	cfg := &config.Config{
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}

	bus := events.NewBus()

	var s Service
	s.Init(app, cfg, bus)

	return &fixture{app: app, db: db, bus: bus}
}

func (f *fixture) signIn(t *testing.T, role authz.Role) string {
	t.Helper()

	tpl, err := authz.TemplateFor(role)
	require.NoError(t, err)

	user := models.User{
		Username:    "u-" + string(role),
		Email:       string(role) + "@example.com",
		Role:        role,
		Permissions: tpl.Matrix,
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

func TestSet_PersistsRoleAndPublishes(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin)

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	resp := f.post(t, Path, sess, url.Values{"role": {string(authz.RoleServicedesk)}})
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var stored websess.Data
	require.NoError(t, stored.Read(sess))
	assert.Equal(t, authz.RoleServicedesk, stored.ViewAsRole)

	select {
	case change := <-ch:
		assert.Equal(t, sess, change.SessionID)
		assert.Equal(t, authz.RoleServicedesk, change.Role)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestSet_NonAdminForbidden(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleStandardUser)

	resp := f.post(t, Path, sess, url.Values{"role": {string(authz.RoleServicedesk)}})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSet_RejectsUnknownAndAdminTargets(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin)

	for _, role := range []string{"superuser", string(authz.RoleAdmin)} {
		resp := f.post(t, Path, sess, url.Values{"role": {role}})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, role)
	}
}

func TestClear_DropsRoleAndPublishesEmpty(t *testing.T) {
	f := setup(t)
	sess := f.signIn(t, authz.RoleAdmin)

	setResp := f.post(t, Path, sess, url.Values{"role": {string(authz.RoleTester)}})
	setResp.Body.Close()
	require.Equal(t, http.StatusFound, setResp.StatusCode)

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	resp := f.post(t, Path+"/clear", sess, nil)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	var stored websess.Data
	require.NoError(t, stored.Read(sess))
	assert.Empty(t, stored.ViewAsRole)

	select {
	case change := <-ch:
		assert.Empty(t, change.Role)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}
