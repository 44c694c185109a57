package syncx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLock_MutualExclusionSameKey(t *testing.T) {
	m := NewLockManager(5 * time.Second)
	ctx := context.Background()

	var inside int32
	var overlap atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, "r1", func(ctx context.Context) error {
				if atomic.AddInt32(&inside, 1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "two operations overlapped under the same key")
	assert.Empty(t, m.Stats().HeldKeys)
}

func TestWithLock_DistinctKeysOverlap(t *testing.T) {
	m := NewLockManager(5 * time.Second)
	ctx := context.Background()

	firstInside := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.WithLock(ctx, "a", func(ctx context.Context) error {
			close(firstInside)
			<-releaseFirst
			return nil
		})
	}()

	<-firstInside
	// second key must not block behind the first
	err := m.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	close(releaseFirst)
	require.NoError(t, <-done)
}

func TestWithLock_TimeoutNamesKey(t *testing.T) {
	m := NewLockManager(30 * time.Millisecond)
	ctx := context.Background()

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.WithLock(ctx, "contended", func(ctx context.Context) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()

	<-holding
	err := m.WithLock(ctx, "contended", func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, common.ErrLockTimeout)
	assert.Contains(t, err.Error(), "contended")

	close(releaseHolder)
	require.NoError(t, <-done)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Equal(t, int64(1), stats.Contentions)
}

func TestWithLock_WaitersServedFIFO(t *testing.T) {
	m := NewLockManager(5 * time.Second)
	ctx := context.Background()

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- m.WithLock(ctx, "k", func(ctx context.Context) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = m.WithLock(ctx, "k", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// enqueue waiters one at a time so arrival order is deterministic
		waitForWaiters(t, m, "k", i)
	}

	close(releaseHolder)
	require.NoError(t, <-holderDone)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestNotifyDeleted_WakesWaitersWithDistinctError(t *testing.T) {
	m := NewLockManager(5 * time.Second)
	ctx := context.Background()

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- m.WithLock(ctx, "doomed", func(ctx context.Context) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- m.WithLock(ctx, "doomed", func(ctx context.Context) error { return nil })
	}()
	waitForWaiters(t, m, "doomed", 1)

	m.NotifyDeleted("doomed")

	err := <-waiterDone
	require.ErrorIs(t, err, common.ErrTargetDeleted)
	assert.NotErrorIs(t, err, common.ErrLockTimeout, "deletion mid-wait must not be conflated with timeout")

	// the holder is unaffected
	close(releaseHolder)
	require.NoError(t, <-holderDone)
}

func TestClearAll_FailsWaitersButKeepsHolders(t *testing.T) {
	m := NewLockManager(5 * time.Second)
	ctx := context.Background()

	holding := make(chan struct{})
	releaseHolder := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- m.WithLock(ctx, "k", func(ctx context.Context) error {
			close(holding)
			<-releaseHolder
			return nil
		})
	}()
	<-holding

	waiterDone := make(chan error, 1)
	go func() {
		waiterDone <- m.WithLock(ctx, "k", func(ctx context.Context) error { return nil })
	}()
	waitForWaiters(t, m, "k", 1)

	m.ClearAll()
	require.ErrorIs(t, <-waiterDone, common.ErrLockCleared)

	// the holder's release must still work after ClearAll
	close(releaseHolder)
	require.NoError(t, <-holderDone)
	assert.Empty(t, m.Stats().HeldKeys)
}

func TestDrainAfterTimeout_DeletionKeepsDistinctOutcome(t *testing.T) {
	m := NewLockManager(time.Second)

	err := m.drainAfterTimeout("r1", waitDeleted)

	require.ErrorIs(t, err, common.ErrTargetDeleted)
	assert.NotErrorIs(t, err, common.ErrLockTimeout, "a delete that raced the timer must not read as a timeout")
	assert.Equal(t, int64(0), m.Stats().Timeouts)
}

func TestDrainAfterTimeout_GrantIsPassedOn(t *testing.T) {
	m := NewLockManager(time.Second)
	next := &waiter{ch: make(chan waitResult, 1), since: time.Now()}
	m.locks["k"] = &lockState{held: true, waiters: []*waiter{next}}

	err := m.drainAfterTimeout("k", waitGranted)

	require.ErrorIs(t, err, common.ErrLockTimeout)
	assert.Equal(t, waitGranted, <-next.ch, "the missed grant must move to the next waiter")
	assert.Equal(t, int64(1), m.Stats().Timeouts)
}

func TestStats_CountsWaits(t *testing.T) {
	m := NewLockManager(5 * time.Second)
	ctx := context.Background()

	require.NoError(t, m.WithLock(ctx, "x", func(ctx context.Context) error { return nil }))

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.TotalAcquisitions)
	assert.Equal(t, int64(0), stats.Contentions)
	assert.Equal(t, time.Duration(0), stats.AverageWait)
}

// waitForWaiters blocks until n waiters are queued on key.
func waitForWaiters(t *testing.T, m *LockManager, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		st := m.locks[key]
		queued := 0
		if st != nil {
			queued = len(st.waiters)
		}
		m.mu.Unlock()
		if queued >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never saw %d waiters on %q", n, key)
}
