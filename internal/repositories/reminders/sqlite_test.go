package reminders

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/models"
)

func newRepoWithMock(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLiteRepository(db), mock, db
}

var reminderCols = []string{
	"id", "note_id", "user_id", "title", "body", "location_name",
	"title_enc", "body_enc", "location_name_enc", "encryption_version",
	"remind_at", "is_active", "recurrence_pattern", "recurrence_interval",
	"snoozed_until", "snooze_count", "trigger_count", "created_at", "updated_at", "deleted",
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM reminders WHERE id = \?`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reminderCols).AddRow(
			"r1", "n1", "u1", "dentist", "friday", "",
			"ct", nil, nil, int64(1),
			nil, true, nil, nil,
			nil, 0, 2, now, now, false,
		))

	got, err := repo.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "dentist" || got.TitleEnc == nil || *got.TitleEnc != "ct" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.TriggerCount != 2 {
		t.Fatalf("want trigger count 2, got %d", got.TriggerCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM reminders WHERE id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestSave_UpsertMarksPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO reminders .* ON CONFLICT\(id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &models.Reminder{
		ID: "r1", NoteID: "n1", UserID: "u1", Title: "dentist", IsActive: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPending_ScansRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM reminders WHERE user_id = \? AND pending = 1 ORDER BY updated_at`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(reminderCols).
			AddRow("r1", "n1", "u1", "a", "", "", nil, nil, nil, nil,
				nil, true, nil, nil, nil, 0, 0, now, now, false).
			AddRow("r2", "n2", "u1", "b", "", "", nil, nil, nil, nil,
				nil, true, nil, nil, nil, 0, 0, now, now, true))

	got, err := repo.ListPending(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if !got[1].Deleted {
		t.Fatalf("tombstones must be listed for upload")
	}
}

func TestMarkSynced(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE reminders SET pending = 0 WHERE id = \?`).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkSynced(context.Background(), "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_Tombstones(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := regexp.MustCompile(`UPDATE reminders SET deleted = 1, pending = 1, updated_at = CURRENT_TIMESTAMP WHERE id = \?`)
	mock.ExpectExec(q.String()).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_MissingRowIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE reminders SET deleted = 1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestPurgeUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM reminders WHERE user_id = \?`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := repo.PurgeUser(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
