// Package storage opens the local and remote databases and applies their
// embedded schema migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	localmigrations "github.com/dmitrijs2005/remindsafe/internal/migrations/local"
	remotemigrations "github.com/dmitrijs2005/remindsafe/internal/migrations/remote"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// gooseUpContext is a seam for testing migration failures.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// OpenLocal opens the device-local SQLite database and migrates it.
func OpenLocal(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local db: %w", err)
	}
	goose.SetBaseFS(localmigrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate local db: %w", err)
	}
	return db, nil
}

// OpenRemote opens the server-side PostgreSQL database and migrates it.
func OpenRemote(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote db: %w", err)
	}
	goose.SetBaseFS(remotemigrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate remote db: %w", err)
	}
	return db, nil
}
