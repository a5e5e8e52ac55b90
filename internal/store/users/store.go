// Package users implements the dual-write user record store. The local
// database is the source of truth for every read; the remote store is
// written through best-effort on every mutation. A remote failure is
// logged, queued for the reconciler and never blocks the local mutation:
// the application stays usable with no remote store reachable.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/remote"
)

// RemoteStore is the remote collaborator contract the store writes through
// to. A nil RemoteStore runs the store fully offline.
type RemoteStore interface {
	GetUsers(ctx context.Context) ([]remote.User, error)
	CreateUser(ctx context.Context, user remote.User) (remote.User, error)
	UpdateUser(ctx context.Context, id string, user remote.User) (remote.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Store reads and writes user records with the two-tier strategy.
type Store struct {
	db     *gorm.DB
	remote RemoteStore
}

// New creates a user store over the local database and an optional remote
// store.
func New(db *gorm.DB, remoteStore RemoteStore) (*Store, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return &Store{db: db, remote: remoteStore}, nil
}

// Get returns one user from the local store by ID.
func (s *Store) Get(id string) (*models.User, error) {
	var user models.User

	result := s.db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, result.Error
	}

	return &user, nil
}

// GetByUsername returns one user from the local store by username.
func (s *Store) GetByUsername(username string) (*models.User, error) {
	var user models.User

	result := s.db.First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, result.Error
	}

	return &user, nil
}

// LoadLocal reads the full local user set, ordered by username.
func (s *Store) LoadLocal() ([]models.User, error) {
	var out []models.User

	if err := s.db.Order("username ASC").Find(&out).Error; err != nil {
		return nil, err
	}

	return out, nil
}

// LoadAll reads the local user set and reconciles it with the remote set
// for the returned view: users are merged by ID with the local record
// winning on conflict, and remote-only users are appended. The merge
// affects only the returned slice; the local store is left untouched, so
// remote-only changes are not durably adopted. A remote failure degrades
// to the local set.
func (s *Store) LoadAll(ctx context.Context) ([]models.User, error) {
	local, err := s.LoadLocal()
	if err != nil {
		return nil, err
	}

	if s.remote == nil {
		return local, nil
	}

	remoteUsers, err := s.remote.GetUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("remote user fetch failed, serving local set only")
		return local, nil
	}

	seen := make(map[string]bool, len(local))
	for _, u := range local {
		seen[u.ID] = true
	}

	for _, ru := range remoteUsers {
		if seen[ru.ID] {
			continue // local record wins
		}

		local = append(local, fromWire(ru))
	}

	return local, nil
}

// Create stores a new user. The remote write is attempted first; its
// failure is queued for the reconciler, then the local write commits
// unconditionally.
func (s *Store) Create(ctx context.Context, user *models.User) error {
	if err := s.checkIdentity(user.Username, user.Email, user.ID); err != nil {
		return err
	}

	if err := user.Permissions.Validate(); err != nil {
		return err
	}

	// assign the id here rather than in the gorm create hook: the remote
	// copy and any queued outbox payload must carry the same id the local
	// record gets, or the loadAll merge can never pair them
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	s.writeRemote(ctx, models.OutboxOpCreate, user)

	return s.db.Create(user).Error
}

// Update stores changed fields of an existing user. Same ordering and
// failure isolation as Create.
func (s *Store) Update(ctx context.Context, user *models.User) error {
	if err := s.checkIdentity(user.Username, user.Email, user.ID); err != nil {
		return err
	}

	if err := user.Permissions.Validate(); err != nil {
		return err
	}

	s.writeRemote(ctx, models.OutboxOpUpdate, user)

	return s.db.Save(user).Error
}

// Delete removes a user locally and best-effort remotely. A remote
// not-found outcome is treated as success.
func (s *Store) Delete(ctx context.Context, id string) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}

	// queued creates and updates for this user are superseded: replaying
	// them after the delete would resurrect the record remotely
	if err := s.db.Delete(&models.OutboxEntry{}, "user_id = ?", id).Error; err != nil {
		log.Error().Err(err).Str("user_id", id).Msg("failed to drop superseded outbox entries")
	}

	s.writeRemote(ctx, models.OutboxOpDelete, user)

	return s.db.Delete(&models.User{}, "id = ?", id).Error
}

// AppendOverrides writes permission override records to the append-only
// ledger.
func (s *Store) AppendOverrides(userID, actor string, overrides []authz.Override) error {
	if len(overrides) == 0 {
		return nil
	}

	rows := make([]models.PermissionOverride, 0, len(overrides))
	for _, ov := range overrides {
		rowActor := actor
		if rowActor == "" {
			rowActor = ov.Actor
		}

		rows = append(rows, models.PermissionOverride{
			ID:            ov.ID,
			UserID:        userID,
			Module:        ov.Module,
			Capability:    ov.Capability,
			Value:         ov.Value,
			Justification: ov.Justification,
			Actor:         rowActor,
			At:            ov.At,
		})
	}

	return s.db.Create(&rows).Error
}

// Overrides returns the ledger for one user, oldest first.
func (s *Store) Overrides(userID string) ([]models.PermissionOverride, error) {
	var out []models.PermissionOverride

	if err := s.db.Where("user_id = ?", userID).Order("at ASC").Find(&out).Error; err != nil {
		return nil, err
	}

	return out, nil
}

// checkIdentity scans all local users except the one being edited and
// rejects colliding usernames or emails.
func (s *Store) checkIdentity(username, email, excludeID string) error {
	var count int64

	err := s.db.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", username, email, excludeID).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrDuplicateIdentity
	}

	return nil
}

// writeRemote attempts the remote side of a mutation. Failures are logged
// and queued; they never propagate to the caller.
func (s *Store) writeRemote(ctx context.Context, op string, user *models.User) {
	if s.remote == nil {
		return
	}

	err := s.attemptRemote(ctx, op, user.ID, toWire(user))
	if err == nil {
		return
	}

	log.Warn().Err(err).
		Str("op", op).
		Str("user_id", user.ID).
		Msg("remote write failed, queueing for reconciler")

	if queueErr := s.enqueue(op, user); queueErr != nil {
		log.Error().Err(queueErr).Str("user_id", user.ID).Msg("failed to queue outbox entry")
	}
}

func (s *Store) attemptRemote(ctx context.Context, op, id string, wire remote.User) error {
	switch op {
	case models.OutboxOpCreate:
		_, err := s.remote.CreateUser(ctx, wire)
		return err
	case models.OutboxOpUpdate:
		_, err := s.remote.UpdateUser(ctx, id, wire)
		return err
	case models.OutboxOpDelete:
		err := s.remote.DeleteUser(ctx, id)
		if errors.Is(err, remote.ErrNotFound) {
			return nil
		}

		return err
	}

	return nil
}

func (s *Store) enqueue(op string, user *models.User) error {
	payload, err := json.Marshal(toWire(user))
	if err != nil {
		return err
	}

	entry := models.OutboxEntry{
		Op:            op,
		UserID:        user.ID,
		Payload:       payload,
		NextAttemptAt: time.Now().Add(retryBaseDelay),
	}

	return s.db.Create(&entry).Error
}
