// Package remote provides PostgreSQL-backed repositories for server-side
// reminder sync, account anonymization and the audit trail.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/dbx"
	"github.com/dmitrijs2005/remindsafe/internal/models"
	"github.com/google/uuid"
)

// contentTables are the per-user content tables inventoried and purged by
// anonymization, in purge order (children before parents).
var contentTables = []string{"reminders", "tasks", "notes", "folders"}

// metadataTables hold unencrypted per-user metadata cleared during the
// account scrub.
var metadataTables = []string{"tags", "saved_searches", "preferences", "devices"}

// PostgresReminderRepository implements reminder sync storage over a
// dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresReminderRepository struct {
	db dbx.DBTX
}

func NewPostgresReminderRepository(db dbx.DBTX) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

// FetchUpdatedSince returns the user's records with updated_at > since,
// tombstones included, oldest first.
func (r *PostgresReminderRepository) FetchUpdatedSince(ctx context.Context, userID string, since time.Time) ([]*models.WireReminder, error) {
	query := `
		SELECT id, note_id, user_id, title, body, location_name,
			title_enc, body_enc, location_name_enc, encryption_version,
			remind_at, is_active, recurrence_pattern, recurrence_interval,
			snoozed_until, snooze_count, trigger_count, created_at, updated_at, deleted
		FROM reminders
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch updated reminders: %w", err)
	}
	defer rows.Close()

	var result []*models.WireReminder
	for rows.Next() {
		var item models.WireReminder
		if err := rows.Scan(
			&item.ID, &item.NoteID, &item.UserID, &item.Title, &item.Body, &item.LocationName,
			&item.TitleEnc, &item.BodyEnc, &item.LocationNameEnc, &item.EncryptionVersion,
			&item.RemindAt, &item.IsActive, &item.RecurrencePattern, &item.RecurrenceInterval,
			&item.SnoozedUntil, &item.SnoozeCount, &item.TriggerCount,
			&item.CreatedAt, &item.UpdatedAt, &item.Deleted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return result, nil
}

// Upsert writes a record by id, scoped to its user. A conflicting row owned
// by another user is left untouched.
func (r *PostgresReminderRepository) Upsert(ctx context.Context, w *models.WireReminder) error {
	query := `
		INSERT INTO reminders (id, note_id, user_id, title, body, location_name,
			title_enc, body_enc, location_name_enc, encryption_version,
			remind_at, is_active, recurrence_pattern, recurrence_interval,
			snoozed_until, snooze_count, trigger_count, created_at, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			location_name = EXCLUDED.location_name,
			title_enc = EXCLUDED.title_enc,
			body_enc = EXCLUDED.body_enc,
			location_name_enc = EXCLUDED.location_name_enc,
			encryption_version = EXCLUDED.encryption_version,
			remind_at = EXCLUDED.remind_at,
			is_active = EXCLUDED.is_active,
			recurrence_pattern = EXCLUDED.recurrence_pattern,
			recurrence_interval = EXCLUDED.recurrence_interval,
			snoozed_until = EXCLUDED.snoozed_until,
			snooze_count = EXCLUDED.snooze_count,
			trigger_count = EXCLUDED.trigger_count,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted
		WHERE reminders.user_id = EXCLUDED.user_id
	`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.NoteID, w.UserID, w.Title, w.Body, w.LocationName,
		w.TitleEnc, w.BodyEnc, w.LocationNameEnc, w.EncryptionVersion,
		w.RemindAt, w.IsActive, w.RecurrencePattern, w.RecurrenceInterval,
		w.SnoozedUntil, w.SnoozeCount, w.TriggerCount, w.CreatedAt, w.UpdatedAt, w.Deleted)
	if err != nil {
		return fmt.Errorf("failed to upsert reminder %s: %w", w.ID, err)
	}
	return nil
}

// PurgeUser removes every reminder row for the user and reports the count.
func (r *PostgresReminderRepository) PurgeUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge reminders for user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// PostgresAccountRepository implements the account operations used by
// anonymization.
type PostgresAccountRepository struct {
	db dbx.DBTX
}

func NewPostgresAccountRepository(db dbx.DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user %s: %w", userID, err)
	}
	return exists, nil
}

// CountUserContent returns per-table row counts for the user's content.
func (r *PostgresAccountRepository) CountUserContent(ctx context.Context, userID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(contentTables))
	for _, table := range contentTables {
		var n int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, table)
		if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s for user %s: %w", table, userID, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// PurgeUserContent deletes the user's content rows table by table and
// returns the per-table deletion counts.
func (r *PostgresAccountRepository) PurgeUserContent(ctx context.Context, userID string) (map[string]int64, error) {
	deleted := make(map[string]int64, len(contentTables))
	for _, table := range contentTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table)
		res, err := r.db.ExecContext(ctx, query, userID)
		if err != nil {
			return deleted, fmt.Errorf("failed to purge %s for user %s: %w", table, userID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("rows affected error: %w", err)
		}
		deleted[table] = n
	}
	return deleted, nil
}

// AnonymizeUser scrubs identity columns in place. The row and its id are
// kept so audit references stay resolvable.
func (r *PostgresAccountRepository) AnonymizeUser(ctx context.Context, userID string) error {
	query := `
		UPDATE users SET
			email = 'anon-' || id || '@anonymized.invalid',
			display_name = NULL,
			password_hash = NULL,
			anonymized_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to anonymize user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected anonymizing user %s: %d", userID, n)
	}
	return nil
}

// ClearUserMetadata deletes the user's unencrypted metadata rows and scrubs
// the details of prior audit entries, keeping action names so the trail stays
// resolvable. Returns per-table counts, the scrubbed audit rows included.
func (r *PostgresAccountRepository) ClearUserMetadata(ctx context.Context, userID string) (map[string]int64, error) {
	cleared := make(map[string]int64, len(metadataTables)+1)
	for _, table := range metadataTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table)
		res, err := r.db.ExecContext(ctx, query, userID)
		if err != nil {
			return cleared, fmt.Errorf("failed to clear %s for user %s: %w", table, userID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return cleared, fmt.Errorf("rows affected error: %w", err)
		}
		cleared[table] = n
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE audit_events SET details = '' WHERE user_id = $1`, userID)
	if err != nil {
		return cleared, fmt.Errorf("failed to scrub audit trail for user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return cleared, fmt.Errorf("rows affected error: %w", err)
	}
	cleared["audit_events"] = n
	return cleared, nil
}

// PostgresAuditRepository appends to the audit_events table.
type PostgresAuditRepository struct {
	db dbx.DBTX
}

func NewPostgresAuditRepository(db dbx.DBTX) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Record(ctx context.Context, ev *AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.UserID, ev.Action, ev.Details, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit event %s: %w", ev.Action, err)
	}
	return nil
}
