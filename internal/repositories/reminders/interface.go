package reminders

import (
	"context"

	"github.com/dmitrijs2005/remindsafe/internal/models"
)

// Repository is the device-local reminder store. Local writes mark a record
// pending; the sync engine clears the flag once the record has been uploaded.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Reminder, error)
	Save(ctx context.Context, r *models.Reminder) error
	SaveSynced(ctx context.Context, r *models.Reminder) error
	ListPending(ctx context.Context, userID string) ([]*models.Reminder, error)
	MarkSynced(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	PurgeUser(ctx context.Context, userID string) error
}
