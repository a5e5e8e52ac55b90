package models

import "time"

// Outbox operations.
const (
	OutboxOpCreate = "create"
	OutboxOpUpdate = "update"
	OutboxOpDelete = "delete"
)

// OutboxEntry queues a user mutation whose remote write failed. The
// reconciler retries pending entries with exponential backoff until the
// remote store accepts them; local durability never waits on this.
type OutboxEntry struct {
	ID     uint64 `gorm:"primaryKey"`
	Op     string `gorm:"type:varchar(10);not null"`
	UserID string `gorm:"size:36;not null"`
	// Payload is the JSON-encoded user record for create/update.
	Payload  []byte `gorm:"type:blob"`
	Attempts int
	// NextAttemptAt gates retries; the reconciler skips entries scheduled
	// in the future.
	NextAttemptAt time.Time `gorm:"index"`
	LastError     string    `gorm:"size:500"`
	CreatedAt     time.Time
}

// TableName overrides GORM's default table naming.
func (OutboxEntry) TableName() string {
	return "outbox_entries"
}
