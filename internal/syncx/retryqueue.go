package syncx

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/logging"
)

// RetryEntry tracks one record whose encryption failed and must be retried
// with exponential backoff.
type RetryEntry struct {
	RecordID string
	NoteID   string
	UserID   string

	// RetryCount is the number of failures after the first; the backoff
	// delay is BaseDelay * 2^RetryCount.
	RetryCount int

	// LastRetryTime is zero until a retry has been attempted; a zero value
	// means the entry is ready immediately.
	LastRetryTime   time.Time
	FirstEnqueuedAt time.Time
}

// NextRetryDelay returns the strictly exponential backoff for this entry.
func (e *RetryEntry) NextRetryDelay(base time.Duration) time.Duration {
	return base * time.Duration(1<<e.RetryCount)
}

// RetryQueueConfig tunes the queue's bounds.
type RetryQueueConfig struct {
	BaseDelay    time.Duration
	MaxRetries   int
	MaxQueueSize int
	MaxAge       time.Duration
}

// RetryQueue is a bounded, age-limited queue of records whose encryption
// failed. It is safe for concurrent use; one instance lives per process and
// is injected where needed. Reset exists for test isolation only.
type RetryQueue struct {
	mu      sync.Mutex
	cfg     RetryQueueConfig
	entries map[string]*RetryEntry
	log     logging.Logger
	now     func() time.Time
}

func NewRetryQueue(cfg RetryQueueConfig, log logging.Logger) *RetryQueue {
	if log == nil {
		log = logging.NoopLogger{}
	}
	return &RetryQueue{
		cfg:     cfg,
		entries: make(map[string]*RetryEntry),
		log:     log,
		now:     time.Now,
	}
}

// Enqueue inserts a new entry for recordID or advances the backoff of an
// existing one. It returns false, removing the entry, when the increment
// reaches MaxRetries; it also returns false when the queue is full and the
// entry is new. Re-enqueueing an existing entry in a full queue still
// succeeds, since the size does not grow.
func (q *RetryQueue) Enqueue(recordID, noteID, userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[recordID]; ok {
		e.RetryCount++
		e.LastRetryTime = q.now()
		if e.RetryCount >= q.cfg.MaxRetries {
			delete(q.entries, recordID)
			q.log.Warn(context.Background(), "record exceeded max encryption retries, dropping",
				"record_id", recordID, "retries", e.RetryCount)
			return false
		}
		return true
	}

	if len(q.entries) >= q.cfg.MaxQueueSize {
		q.log.Warn(context.Background(), "encryption retry queue full, rejecting record",
			"record_id", recordID, "size", len(q.entries))
		return false
	}

	q.entries[recordID] = &RetryEntry{
		RecordID:        recordID,
		NoteID:          noteID,
		UserID:          userID,
		FirstEnqueuedAt: q.now(),
	}
	return true
}

// Dequeue removes recordID from the queue. Removing an absent entry is a
// no-op.
func (q *RetryQueue) Dequeue(recordID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, recordID)
}

// DequeueUser removes every entry owned by userID and returns the count.
func (q *RetryQueue) DequeueUser(userID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, e := range q.entries {
		if e.UserID == userID {
			delete(q.entries, id)
			n++
		}
	}
	return n
}

// Contains reports whether recordID is queued.
func (q *RetryQueue) Contains(recordID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[recordID]
	return ok
}

// Len returns the number of queued entries.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// ReadyForRetry returns copies of the entries whose backoff has elapsed (or
// that have never been attempted), ordered by first enqueue time. Entries
// older than MaxAge are purged as a side effect.
func (q *RetryQueue) ReadyForRetry() []RetryEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var ready []RetryEntry
	for id, e := range q.entries {
		if q.cfg.MaxAge > 0 && now.Sub(e.FirstEnqueuedAt) > q.cfg.MaxAge {
			delete(q.entries, id)
			q.log.Warn(context.Background(), "purging stale retry entry",
				"record_id", id, "age", now.Sub(e.FirstEnqueuedAt).String())
			continue
		}
		if e.LastRetryTime.IsZero() || now.Sub(e.LastRetryTime) >= e.NextRetryDelay(q.cfg.BaseDelay) {
			ready = append(ready, *e)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].FirstEnqueuedAt.Before(ready[j].FirstEnqueuedAt)
	})
	return ready
}

// ProcessRetries invokes retryFn for every ready entry and returns the
// number of entries still queued afterwards. Successful and fatal outcomes
// dequeue the entry; retryable failures leave it queued (its backoff was
// already advanced by the Enqueue that reported the failure). Panics from
// retryFn are contained and treated as retryable failures.
func (q *RetryQueue) ProcessRetries(ctx context.Context, retryFn func(ctx context.Context, e RetryEntry) EncryptionOutcome) int {
	for _, e := range q.ReadyForRetry() {
		outcome := q.runRetry(ctx, retryFn, e)
		switch outcome.Status {
		case OutcomeSuccess:
			q.Dequeue(e.RecordID)
		case OutcomeFatal:
			q.Dequeue(e.RecordID)
			q.log.Error(ctx, "non-retryable encryption failure, manual intervention required",
				"record_id", e.RecordID, "reason", outcome.Reason, "error", outcome.Err)
		case OutcomeRetryable:
			q.log.Debug(ctx, "encryption retry failed, keeping queued",
				"record_id", e.RecordID, "reason", outcome.Reason)
		}
	}
	return q.Len()
}

func (q *RetryQueue) runRetry(ctx context.Context, retryFn func(ctx context.Context, e RetryEntry) EncryptionOutcome, e RetryEntry) (outcome EncryptionOutcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = RetryableFailure(fmt.Sprintf("retry panicked: %v", p), nil)
		}
	}()
	return retryFn(ctx, e)
}

// Reset empties the queue. Test harnesses only; production code never
// resets the queue implicitly.
func (q *RetryQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[string]*RetryEntry)
}
