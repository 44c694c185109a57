package keyring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/dbx"
)

// SQLiteStore persists key material in the local user_keys table.
type SQLiteStore struct {
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, userID, name string) ([]byte, error) {
	var material []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT material FROM user_keys WHERE user_id = ? AND name = ?`,
		userID, name).Scan(&material)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s/%s: %w", userID, name, err)
	}
	return material, nil
}

func (s *SQLiteStore) Put(ctx context.Context, userID, name string, material []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_keys (user_id, name, material, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, name) DO UPDATE SET
			material = excluded.material,
			updated_at = excluded.updated_at
	`, userID, name, material)
	if err != nil {
		return fmt.Errorf("failed to put key %s/%s: %w", userID, name, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_keys WHERE user_id = ? AND name = ?`, userID, name)
	if err != nil {
		return fmt.Errorf("failed to delete key %s/%s: %w", userID, name, err)
	}
	return nil
}
