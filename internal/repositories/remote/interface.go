package remote

import (
	"context"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/models"
)

// ReminderRepository is the server-side reminder store used by the sync
// engine. Records cross this boundary in wire shape only; plaintext fields
// are stripped before upload for encrypted records.
type ReminderRepository interface {
	FetchUpdatedSince(ctx context.Context, userID string, since time.Time) ([]*models.WireReminder, error)
	Upsert(ctx context.Context, w *models.WireReminder) error
	PurgeUser(ctx context.Context, userID string) (int64, error)
}

// AccountRepository covers the account-level operations the anonymization
// workflow needs: existence checks, content inventory, content purge, the
// identity scrub and the unencrypted-metadata clearing.
type AccountRepository interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	CountUserContent(ctx context.Context, userID string) (map[string]int64, error)
	PurgeUserContent(ctx context.Context, userID string) (map[string]int64, error)
	AnonymizeUser(ctx context.Context, userID string) error
	ClearUserMetadata(ctx context.Context, userID string) (map[string]int64, error)
}

// AuditEvent is an append-only trail entry. Events carry no PII beyond the
// user id, which anonymization intentionally preserves for accountability.
type AuditEvent struct {
	ID        string
	UserID    string
	Action    string
	Details   string
	CreatedAt time.Time
}

type AuditRepository interface {
	Record(ctx context.Context, ev *AuditEvent) error
}
