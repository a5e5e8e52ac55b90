package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
)

// Store is the global session store instance.
var Store *session.Store

// lookup resolves the persisted user id to the current user record.
var lookup UserLookup

// ErrNoSession is returned when the request carries no usable session.
var ErrNoSession = errors.New("no session")

// UserLookup resolves a user id against the local store. A lookup failure
// invalidates the session, forcing re-authentication.
type UserLookup func(id string) (*models.User, error)

// Data represents the session data structure. Only the user id and the
// preview role are persisted; the user record is resolved from the local
// store on every read, so role edits, permission changes, deactivation
// and deletion take effect on the next request instead of at session
// expiry.
type Data struct {
	User models.User `json:"-"`

	// UserID is the persisted reference to the signed-in user.
	UserID string

	// ViewAsRole is set while the user previews the app as another role.
	// Empty means no preview is active.
	ViewAsRole authz.Role
}

// Subject projects the session onto an access control subject.
func (s *Data) Subject() *authz.Subject {
	return s.User.Subject()
}

// Context returns the per-request access control context.
func (s *Data) Context() authz.Context {
	return authz.Context{ViewAsRole: s.ViewAsRole}
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	s.UserID = s.User.ID

	out, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return Store.Storage.Set(sessionID, out, exp)
}

// Read reads the session data for the given session ID and resolves the
// user record through the store lookup. A session whose user no longer
// exists is invalid.
func (s *Data) Read(sessionID string) error {
	byteData, err := Store.Storage.Get(sessionID)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(byteData, s); err != nil {
		return err
	}

	if s.UserID == "" {
		return ErrNoSession
	}

	user, err := lookup(s.UserID)
	if err != nil {
		return ErrNoSession
	}

	s.User = *user

	return nil
}

// Current reads the session for the request cookie. It returns the session
// ID alongside the data so callers can write updates back.
func Current(c *fiber.Ctx) (*Data, string, error) {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return nil, "", ErrNoSession
	}

	data := new(Data)
	if err := data.Read(sessionID); err != nil {
		return nil, "", err
	}

	if data.User.ID == "" {
		return nil, "", ErrNoSession
	}

	return data, sessionID, nil
}

// Init initializes the session store with the provided storage backend and
// user lookup.
func Init(storage storage.Storage, userLookup UserLookup) {
	if storage == nil {
		panic("storage is nil")
	}

	if userLookup == nil {
		panic("user lookup is nil")
	}

	Store = session.New(session.Config{
		Storage: storage,
	})
	lookup = userLookup
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	// 32 bytes = 256 bits
	b := make([]byte, 32) //nolint:mnd
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
