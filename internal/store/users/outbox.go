package users

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/remote"
)

const (
	// retryBaseDelay is the first retry delay; each attempt doubles it.
	retryBaseDelay = 30 * time.Second
	// retryMaxDelay caps the backoff.
	retryMaxDelay = time.Hour
	// retryMaxShift caps the doubling; larger shifts overflow the
	// duration before the retryMaxDelay comparison sees them.
	retryMaxShift = 8
	// reconcileSchedule is the cron cadence of the reconcile pass.
	reconcileSchedule = "@every 30s"
	// reconcileBatch bounds the entries handled per pass.
	reconcileBatch = 50
)

// Reconciler drains the outbox in the background: pending remote writes
// are retried with exponential backoff until the remote store accepts
// them or the entry's operation is superseded.
type Reconciler struct {
	store *Store
	cron  *cron.Cron
}

// NewReconciler builds a reconciler over the store's outbox.
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{
		store: store,
		cron:  cron.New(),
	}
}

// Start schedules the periodic reconcile pass. It returns immediately.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(reconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		r.store.ReconcileOnce(ctx)
	}); err != nil {
		return err
	}

	r.cron.Start()
	log.Info().Str("schedule", reconcileSchedule).Msg("outbox reconciler started")

	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("outbox reconciler stopped")
}

// ReconcileOnce processes all due outbox entries once. Succeeded entries
// are removed; failed ones are rescheduled with doubled delay.
func (s *Store) ReconcileOnce(ctx context.Context) {
	if s.remote == nil {
		return
	}

	var due []models.OutboxEntry

	err := s.db.Where("next_attempt_at <= ?", time.Now()).
		Order("id ASC").
		Limit(reconcileBatch).
		Find(&due).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to load outbox entries")
		return
	}

	for _, entry := range due {
		if err := s.retryEntry(ctx, entry); err != nil {
			s.rescheduleEntry(entry, err)
			continue
		}

		if err := s.db.Delete(&models.OutboxEntry{}, entry.ID).Error; err != nil {
			log.Error().Err(err).Uint64("entry_id", entry.ID).Msg("failed to remove outbox entry")
			continue
		}

		log.Info().
			Str("op", entry.Op).
			Str("user_id", entry.UserID).
			Int("attempts", entry.Attempts+1).
			Msg("outbox entry reconciled")
	}
}

func (s *Store) retryEntry(ctx context.Context, entry models.OutboxEntry) error {
	var wire remote.User

	if len(entry.Payload) > 0 {
		if err := json.Unmarshal(entry.Payload, &wire); err != nil {
			return err
		}
	}

	return s.attemptRemote(ctx, entry.Op, entry.UserID, wire)
}

func (s *Store) rescheduleEntry(entry models.OutboxEntry, cause error) {
	entry.Attempts++
	entry.LastError = cause.Error()

	shift := entry.Attempts
	if shift > retryMaxShift {
		shift = retryMaxShift
	}

	delay := retryBaseDelay << shift
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}

	entry.NextAttemptAt = time.Now().Add(delay)

	if err := s.db.Save(&entry).Error; err != nil {
		log.Error().Err(err).Uint64("entry_id", entry.ID).Msg("failed to reschedule outbox entry")
		return
	}

	log.Warn().Err(cause).
		Uint64("entry_id", entry.ID).
		Int("attempts", entry.Attempts).
		Dur("next_in", delay).
		Msg("outbox entry retry failed")
}

// PendingOutbox returns the number of entries still waiting on the remote
// store, for the dashboard and diagnostics.
func (s *Store) PendingOutbox() (int64, error) {
	var count int64

	if err := s.db.Model(&models.OutboxEntry{}).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
