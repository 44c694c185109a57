package syncx

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/dmitrijs2005/remindsafe/internal/logging"
	"github.com/dmitrijs2005/remindsafe/internal/models"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/metadata"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/reminders"
	"github.com/dmitrijs2005/remindsafe/internal/repositories/remote"
	"golang.org/x/sync/errgroup"
)

const defaultUploadConcurrency = 4

// EngineConfig carries the per-device engine settings.
type EngineConfig struct {
	UserID string
	// UploadConcurrency bounds parallel record uploads within one pass.
	UploadConcurrency int
}

// Engine drives the sync protocol: downloads are applied before uploads so
// conflicts are resolved against the freshest remote state, every mutation of
// a record happens under its per-record lock, and plaintext never crosses the
// remote boundary for encrypted records.
type Engine struct {
	local  reminders.Repository
	remote remote.ReminderRepository
	meta   metadata.Repository
	locks  *LockManager
	helper *EncryptionHelper
	queue  *RetryQueue
	log    logging.Logger

	userID            string
	uploadConcurrency int
}

func NewEngine(
	local reminders.Repository,
	rem remote.ReminderRepository,
	meta metadata.Repository,
	locks *LockManager,
	helper *EncryptionHelper,
	queue *RetryQueue,
	cfg EngineConfig,
	log logging.Logger,
) *Engine {
	if log == nil {
		log = logging.NoopLogger{}
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultUploadConcurrency
	}
	return &Engine{
		local:             local,
		remote:            rem,
		meta:              meta,
		locks:             locks,
		helper:            helper,
		queue:             queue,
		log:               log,
		userID:            cfg.UserID,
		uploadConcurrency: cfg.UploadConcurrency,
	}
}

// SyncPass runs one full cycle: remote changes are downloaded and merged
// first, then pending local records are encrypted and uploaded.
func (e *Engine) SyncPass(ctx context.Context) error {
	if err := e.downloadUpdates(ctx); err != nil {
		return fmt.Errorf("download phase: %w", err)
	}
	if err := e.uploadPending(ctx); err != nil {
		return fmt.Errorf("upload phase: %w", err)
	}
	return nil
}

func (e *Engine) downloadUpdates(ctx context.Context) error {
	cursorKey := metadata.LastSyncKey(e.userID)
	since, err := e.meta.GetTime(ctx, cursorKey)
	if err != nil {
		return err
	}

	updates, err := e.remote.FetchUpdatedSince(ctx, e.userID, since)
	if err != nil {
		return err
	}

	cursor := since
	for _, w := range updates {
		if err := e.applyRemote(ctx, w); err != nil {
			if errors.Is(err, common.ErrTargetDeleted) {
				// Deleted locally while we waited for its lock; the tombstone
				// upload will settle it.
				continue
			}
			return err
		}
		if w.UpdatedAt.After(cursor) {
			cursor = w.UpdatedAt
		}
	}

	if cursor.After(since) {
		return e.meta.SetTime(ctx, cursorKey, cursor)
	}
	return nil
}

// applyRemote merges one downloaded record into the local store under its
// lock. A merge result that diverges from the remote state is saved pending
// so the next upload phase pushes it back.
func (e *Engine) applyRemote(ctx context.Context, w *models.WireReminder) error {
	return e.locks.WithLock(ctx, w.ID, func(ctx context.Context) error {
		rem := models.FromWire(w)
		loc, err := e.local.Get(ctx, w.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return e.local.SaveSynced(ctx, rem)
		}
		if err != nil {
			return err
		}

		merged := ResolveConflict(loc, rem)
		if reminderEqual(merged, rem) {
			return e.local.SaveSynced(ctx, merged)
		}
		return e.local.Save(ctx, merged)
	})
}

func (e *Engine) uploadPending(ctx context.Context) error {
	pending, err := e.local.ListPending(ctx, e.userID)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.uploadConcurrency)
	for _, rec := range pending {
		g.Go(func() error {
			err := e.uploadRecord(ctx, rec)
			if errors.Is(err, common.ErrTargetDeleted) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) uploadRecord(ctx context.Context, rec *models.Reminder) error {
	return e.locks.WithLock(ctx, rec.ID, func(ctx context.Context) error {
		if rec.Deleted {
			if err := e.remote.Upsert(ctx, rec.ToWire()); err != nil {
				return err
			}
			return e.local.MarkSynced(ctx, rec.ID)
		}

		out := e.helper.EncryptForSync(ctx, rec, e.userID)
		switch out.Status {
		case OutcomeRetryable:
			// Queued for backoff; the record stays pending and plaintext
			// stays local.
			return nil
		case OutcomeFatal:
			e.log.Error(ctx, "record upload blocked by non-retryable encryption failure",
				"record_id", rec.ID, "reason", out.Reason, "error", out.Err)
			return nil
		}

		out.Apply(rec)
		w := rec.ToWire()
		if rec.Encrypted() {
			w.Title = nil
			w.Body = nil
			w.LocationName = nil
		}
		if err := e.remote.Upsert(ctx, w); err != nil {
			return err
		}
		return e.local.SaveSynced(ctx, rec)
	})
}

// EnsureEncrypted lazily encrypts a record on access. The record is returned
// in its current state even when encryption fails; retryable failures are
// queued and the plaintext view stays usable.
func (e *Engine) EnsureEncrypted(ctx context.Context, id string) (*models.Reminder, error) {
	var result *models.Reminder
	err := e.locks.WithLock(ctx, id, func(ctx context.Context) error {
		rec, err := e.local.Get(ctx, id)
		if err != nil {
			return err
		}
		result = rec
		if rec.Deleted {
			return nil
		}

		out := e.helper.EncryptForSync(ctx, rec, e.userID)
		if out.Status != OutcomeSuccess {
			return nil
		}

		before := rec.Clone()
		out.Apply(rec)
		if reminderEqual(rec, before) {
			// Already carried a valid encrypted view; nothing to persist.
			return nil
		}
		return e.local.Save(ctx, rec)
	})
	return result, err
}

// DeleteRecord tombstones a record, drops any queued retry for it and wakes
// lock waiters with a deletion error so they do not operate on a dead record.
func (e *Engine) DeleteRecord(ctx context.Context, id string) error {
	err := e.local.Delete(ctx, id)
	e.queue.Dequeue(id)
	e.locks.NotifyDeleted(id)
	return err
}

// ProcessRetryQueue attempts every ready retry entry once and returns the
// number of entries still queued.
func (e *Engine) ProcessRetryQueue(ctx context.Context) int {
	return e.queue.ProcessRetries(ctx, func(ctx context.Context, entry RetryEntry) EncryptionOutcome {
		var out EncryptionOutcome
		err := e.locks.WithLock(ctx, entry.RecordID, func(ctx context.Context) error {
			rec, err := e.local.Get(ctx, entry.RecordID)
			if errors.Is(err, common.ErrorNotFound) {
				out = successOutcome(nil, nil, nil, 0)
				return nil
			}
			if err != nil {
				return err
			}
			if rec.Deleted {
				out = successOutcome(nil, nil, nil, 0)
				return nil
			}

			out = e.helper.EncryptForSync(ctx, rec, e.userID)
			if out.Status == OutcomeSuccess {
				out.Apply(rec)
				return e.local.Save(ctx, rec)
			}
			return nil
		})
		if err != nil {
			return RetryableFailure("retry attempt failed", err)
		}
		return out
	})
}

// Invalidate tears down the user's sync state: the incremental download
// cursor, any queued encryption retries and every outstanding lock wait.
// Called when the account ceases to exist, such as after anonymization.
func (e *Engine) Invalidate(ctx context.Context, userID string) error {
	if err := e.meta.Delete(ctx, metadata.LastSyncKey(userID)); err != nil {
		return err
	}
	dropped := e.queue.DequeueUser(userID)
	e.locks.ClearAll()
	e.log.Info(ctx, "sync state invalidated", "user_id", userID, "dropped_retries", dropped)
	return nil
}

// Run drives the periodic sync and retry loops until ctx is cancelled. Loop
// errors are logged, not fatal; a failed pass is retried on the next tick.
func (e *Engine) Run(ctx context.Context, syncInterval, retryInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.runSyncLoop(ctx, syncInterval) })
	g.Go(func() error { return e.runRetryLoop(ctx, retryInterval) })
	return g.Wait()
}

func (e *Engine) runSyncLoop(ctx context.Context, interval time.Duration) error {
	if err := e.SyncPass(ctx); err != nil {
		e.log.Error(ctx, "sync pass failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.SyncPass(ctx); err != nil {
				e.log.Error(ctx, "sync pass failed", "error", err)
			}
		}
	}
}

func (e *Engine) runRetryLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.ProcessRetryQueue(ctx)
		}
	}
}

func reminderEqual(a, b *models.Reminder) bool {
	return reflect.DeepEqual(a, b)
}
