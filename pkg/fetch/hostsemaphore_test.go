package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

func newTestPool(limit int) *HostSemaphorePool {
	return NewHostSemaphorePool(limit, 0, testLogger())
}

func TestHostSemaphore_AcquireRelease(t *testing.T) {
	pool := newTestPool(2)
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx, "host-a"))
	require.NoError(t, pool.Acquire(ctx, "host-a"))

	// Both slots held
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, pool.Acquire(shortCtx, "host-a"))

	// Other hosts are independent
	require.NoError(t, pool.Acquire(ctx, "host-b"))
	assert.Equal(t, 2, pool.Len())

	pool.Release("host-a")
	require.NoError(t, pool.Acquire(ctx, "host-a"))

	pool.Release("host-a")
	pool.Release("host-a")
	pool.Release("host-b")
}

func TestHostSemaphore_AcquireTimeout(t *testing.T) {
	pool := NewHostSemaphorePool(1, 30*time.Millisecond, testLogger())
	require.NoError(t, pool.Acquire(context.Background(), "slow.com"))
	defer pool.Release("slow.com")

	err := pool.Acquire(context.Background(), "slow.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrSemaphoreTimeout)
	assert.Equal(t, "Resource_SemaphoreTimeout", utils.CategorizeError(err))
}

func TestHostSemaphore_CancelledContextIsNotATimeout(t *testing.T) {
	pool := NewHostSemaphorePool(1, time.Minute, testLogger())
	require.NoError(t, pool.Acquire(context.Background(), "host-a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Acquire(ctx, "host-a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, utils.ErrSemaphoreTimeout)

	// The failed acquire must not leave the entry looking busy
	pool.Release("host-a")
	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	assert.Equal(t, 0, pool.Len())
}

func TestHostSemaphore_EvictIdle(t *testing.T) {
	pool := newTestPool(1)
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx, "held.com"))
	for _, host := range []string{"a.com", "b.com"} {
		require.NoError(t, pool.Acquire(ctx, host))
		pool.Release(host)
	}
	require.Equal(t, 3, pool.Len())

	time.Sleep(5 * time.Millisecond)
	pool.evictIdle(time.Millisecond)
	assert.Equal(t, 1, pool.Len(), "held host is preserved")

	pool.Release("held.com")
}

func TestHostSemaphore_RunEvictionStopsOnCancel(t *testing.T) {
	pool := newTestPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		pool.RunEviction(ctx, time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunEviction did not respect context cancellation")
	}
}

func TestHostSemaphore_ConcurrentLimit(t *testing.T) {
	pool := newTestPool(3)
	const goroutines = 30

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background(), "busy.com"); err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			pool.Release("busy.com")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
}
