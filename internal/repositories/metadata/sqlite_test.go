package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLiteRepository(db), mock, db
}

func TestGet_MissingKeyIsNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM metadata WHERE key = \?`).
		WithArgs("absent").
		WillReturnError(sql.ErrNoRows)

	value, err := repo.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Fatalf("want nil for missing key, got %q", value)
	}
}

func TestSet_Upserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO metadata .* ON CONFLICT\(key\) DO UPDATE SET value = excluded\.value`).
		WithArgs("k", []byte("v")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetTime_RoundTrip(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	key := LastSyncKey("u1")

	mock.ExpectExec(`INSERT INTO metadata`).
		WithArgs(key, []byte(ts.Format(time.RFC3339Nano))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetTime(context.Background(), key, ts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectQuery(`SELECT value FROM metadata WHERE key = \?`).
		WithArgs(key).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(ts.Format(time.RFC3339Nano))))

	got, err := repo.GetTime(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(ts) {
		t.Fatalf("want %v, got %v", ts, got)
	}
}

func TestGetTime_MissingKeyIsZero(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM metadata WHERE key = \?`).
		WithArgs("absent").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.GetTime(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("want zero time for missing cursor, got %v", got)
	}
}
