package metadata

import (
	"context"
	"time"
)

// Repository is a small key/value store for sync bookkeeping (cursors,
// device state). A missing key reads as nil, not an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// LastSyncKey is the per-user cursor key for incremental downloads.
func LastSyncKey(userID string) string {
	return "last_sync_at/" + userID
}
