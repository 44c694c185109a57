// Package syncx contains the encrypted-record sync core: the per-record lock
// manager, the encryption retry queue, the sync encryption helper, the
// conflict resolver, and the engine tying them together.
package syncx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/common"
)

type waitResult int

const (
	waitGranted waitResult = iota
	waitDeleted
	waitCleared
)

type waiter struct {
	ch    chan waitResult
	since time.Time
}

type lockState struct {
	held       bool
	acquiredAt time.Time
	waiters    []*waiter
}

// LockStats is a point-in-time snapshot of lock manager counters.
type LockStats struct {
	TotalAcquisitions int64
	Contentions       int64
	Timeouts          int64
	TotalWait         time.Duration
	AverageWait       time.Duration
	HeldKeys          []string
}

// LockManager provides per-record-id mutual exclusion with a timeout and
// FIFO waiter ordering. It serializes lazy encryption and sync uploads of
// the same record; operations on distinct keys run concurrently.
type LockManager struct {
	mu      sync.Mutex
	locks   map[string]*lockState
	timeout time.Duration

	totalAcquisitions int64
	contentions       int64
	timeouts          int64
	totalWait         time.Duration
	waited            int64
}

func NewLockManager(timeout time.Duration) *LockManager {
	return &LockManager{
		locks:   make(map[string]*lockState),
		timeout: timeout,
	}
}

// WithLock acquires the lock for key, runs op, and releases the lock on
// every exit path including panics. A caller that cannot acquire the lock
// within the configured timeout fails with common.ErrLockTimeout carrying
// the contended key; a waiter woken because the record was deleted fails
// with common.ErrTargetDeleted.
func (m *LockManager) WithLock(ctx context.Context, key string, op func(ctx context.Context) error) error {
	release, err := m.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return op(ctx)
}

func (m *LockManager) acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	m.totalAcquisitions++
	st := m.locks[key]
	if st == nil {
		st = &lockState{}
		m.locks[key] = st
	}
	if !st.held {
		st.held = true
		st.acquiredAt = time.Now()
		m.mu.Unlock()
		return func() { m.release(key) }, nil
	}

	w := &waiter{ch: make(chan waitResult, 1), since: time.Now()}
	st.waiters = append(st.waiters, w)
	m.contentions++
	m.mu.Unlock()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		return m.handleWake(key, w, res)

	case <-timer.C:
		if m.cancelWait(key, w) {
			m.mu.Lock()
			m.timeouts++
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", common.ErrLockTimeout, key)
		}
		// A signal raced with the timeout and must not be lost.
		return nil, m.drainAfterTimeout(key, <-w.ch)

	case <-ctx.Done():
		if m.cancelWait(key, w) {
			return nil, ctx.Err()
		}
		if res := <-w.ch; res == waitGranted {
			m.release(key)
		}
		return nil, ctx.Err()
	}
}

// drainAfterTimeout maps a signal that raced with the waiter's timer. A
// missed grant is passed on so the lock does not leak and still reads as a
// timeout; a missed delete or clear keeps its own distinct outcome.
func (m *LockManager) drainAfterTimeout(key string, res waitResult) error {
	switch res {
	case waitDeleted:
		return fmt.Errorf("%w: %s", common.ErrTargetDeleted, key)
	case waitCleared:
		return fmt.Errorf("%w: %s", common.ErrLockCleared, key)
	}
	m.release(key)
	m.mu.Lock()
	m.timeouts++
	m.mu.Unlock()
	return fmt.Errorf("%w: %s", common.ErrLockTimeout, key)
}

func (m *LockManager) handleWake(key string, w *waiter, res waitResult) (func(), error) {
	switch res {
	case waitGranted:
		m.mu.Lock()
		m.waited++
		m.totalWait += time.Since(w.since)
		m.mu.Unlock()
		return func() { m.release(key) }, nil
	case waitDeleted:
		return nil, fmt.Errorf("%w: %s", common.ErrTargetDeleted, key)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrLockCleared, key)
	}
}

// cancelWait removes w from the key's waiter queue. It returns false when w
// is no longer queued, which means a signal was (or is being) delivered.
func (m *LockManager) cancelWait(key string, w *waiter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.locks[key]
	if st == nil {
		return false
	}
	for i, q := range st.waiters {
		if q == w {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// release hands the lock to the oldest waiter, or frees it when nobody is
// queued. Safe to call after ClearAll.
func (m *LockManager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.locks[key]
	if st == nil {
		return
	}
	if len(st.waiters) > 0 {
		next := st.waiters[0]
		st.waiters = st.waiters[1:]
		st.acquiredAt = time.Now()
		next.ch <- waitGranted
		return
	}
	st.held = false
	delete(m.locks, key)
}

// NotifyDeleted wakes every waiter queued on key with ErrTargetDeleted. The
// current holder, if any, is unaffected; deletion only short-circuits
// callers that have not been granted the lock yet.
func (m *LockManager) NotifyDeleted(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.locks[key]
	if st == nil {
		return
	}
	for _, w := range st.waiters {
		w.ch <- waitDeleted
	}
	st.waiters = nil
	if !st.held {
		delete(m.locks, key)
	}
}

// ClearAll force-releases every outstanding wait. Held locks stay tracked so
// in-flight operations can still complete and release normally. Intended for
// terminal teardown (test harnesses, account shutdown), not routine error
// recovery.
func (m *LockManager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, st := range m.locks {
		for _, w := range st.waiters {
			w.ch <- waitCleared
		}
		st.waiters = nil
		if !st.held {
			delete(m.locks, key)
		}
	}
}

// Stats returns a snapshot of the manager's counters and currently held keys.
func (m *LockManager) Stats() LockStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := LockStats{
		TotalAcquisitions: m.totalAcquisitions,
		Contentions:       m.contentions,
		Timeouts:          m.timeouts,
		TotalWait:         m.totalWait,
	}
	if m.waited > 0 {
		s.AverageWait = m.totalWait / time.Duration(m.waited)
	}
	for key, st := range m.locks {
		if st.held {
			s.HeldKeys = append(s.HeldKeys, key)
		}
	}
	return s
}
