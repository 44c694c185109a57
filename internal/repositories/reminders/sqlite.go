// Package reminders provides the SQLite-backed local reminder store.
package reminders

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/dbx"
	"github.com/dmitrijs2005/remindsafe/internal/models"
)

// SQLiteRepository implements reminder storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const reminderColumns = `id, note_id, user_id, title, body, location_name,
		title_enc, body_enc, location_name_enc, encryption_version,
		remind_at, is_active, recurrence_pattern, recurrence_interval,
		snoozed_until, snooze_count, trigger_count, created_at, updated_at, deleted`

// Get returns the record with the given id, or common.ErrorNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	item, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder %s: %w", id, err)
	}
	return item, nil
}

// Save upserts a record and marks it pending for upload.
func (r *SQLiteRepository) Save(ctx context.Context, rec *models.Reminder) error {
	return r.save(ctx, rec, true)
}

// SaveSynced upserts a record without marking it pending. Used when applying
// downloaded state that the remote already holds.
func (r *SQLiteRepository) SaveSynced(ctx context.Context, rec *models.Reminder) error {
	return r.save(ctx, rec, false)
}

func (r *SQLiteRepository) save(ctx context.Context, rec *models.Reminder, pending bool) error {
	query := `
		INSERT INTO reminders (` + reminderColumns + `, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			location_name = excluded.location_name,
			title_enc = excluded.title_enc,
			body_enc = excluded.body_enc,
			location_name_enc = excluded.location_name_enc,
			encryption_version = excluded.encryption_version,
			remind_at = excluded.remind_at,
			is_active = excluded.is_active,
			recurrence_pattern = excluded.recurrence_pattern,
			recurrence_interval = excluded.recurrence_interval,
			snoozed_until = excluded.snoozed_until,
			snooze_count = excluded.snooze_count,
			trigger_count = excluded.trigger_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			pending = excluded.pending
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.NoteID, rec.UserID, rec.Title, rec.Body, rec.LocationName,
		rec.TitleEnc, rec.BodyEnc, rec.LocationNameEnc, rec.EncryptionVersion,
		rec.RemindAt, rec.IsActive, rec.RecurrencePattern, rec.RecurrenceInterval,
		rec.SnoozedUntil, rec.SnoozeCount, rec.TriggerCount,
		rec.CreatedAt, rec.UpdatedAt, rec.Deleted, pending)
	if err != nil {
		return fmt.Errorf("failed to save reminder %s: %w", rec.ID, err)
	}
	return nil
}

// ListPending returns the user's records awaiting upload, tombstones included.
func (r *SQLiteRepository) ListPending(ctx context.Context, userID string) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = ? AND pending = 1 ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	defer rows.Close()

	var result []*models.Reminder
	for rows.Next() {
		item, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return result, nil
}

// MarkSynced clears the pending flag after a successful upload.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reminders SET pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder %s synced: %w", id, err)
	}
	return nil
}

// Delete tombstones a record. The row stays until the tombstone has synced;
// deletion must propagate, not vanish locally.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET deleted = 1, pending = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// PurgeUser removes every row for the user, tombstones included.
func (r *SQLiteRepository) PurgeUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to purge reminders for user %s: %w", userID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	var item models.Reminder
	err := row.Scan(
		&item.ID, &item.NoteID, &item.UserID, &item.Title, &item.Body, &item.LocationName,
		&item.TitleEnc, &item.BodyEnc, &item.LocationNameEnc, &item.EncryptionVersion,
		&item.RemindAt, &item.IsActive, &item.RecurrencePattern, &item.RecurrenceInterval,
		&item.SnoozedUntil, &item.SnoozeCount, &item.TriggerCount,
		&item.CreatedAt, &item.UpdatedAt, &item.Deleted,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
