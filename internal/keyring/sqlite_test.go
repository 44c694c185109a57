package keyring

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestSQLiteStore_Get(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT material FROM user_keys").
		WithArgs("u1", KeyAMK).
		WillReturnRows(sqlmock.NewRows([]string{"material"}).AddRow([]byte{1, 2}))

	s := NewSQLiteStore(db)
	got, err := s.Get(context.Background(), "u1", KeyAMK)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT material FROM user_keys").
		WithArgs("u1", KeyAMK).
		WillReturnRows(sqlmock.NewRows([]string{"material"}))

	s := NewSQLiteStore(db)
	_, err := s.Get(context.Background(), "u1", KeyAMK)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLiteStore_PutAndDelete(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO user_keys").
		WithArgs("u1", KeyCrossDevice, []byte{3}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM user_keys").
		WithArgs("u1", KeyCrossDevice).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSQLiteStore(db)
	require.NoError(t, s.Put(context.Background(), "u1", KeyCrossDevice, []byte{3}))
	require.NoError(t, s.Delete(context.Background(), "u1", KeyCrossDevice))
	assert.NoError(t, mock.ExpectationsWereMet())
}
