package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SameKeyIsExclusive(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var inside atomic.Int32
	var maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "listing-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load(), "only one holder may be inside at a time")
	assert.Equal(t, 0, locker.Len(), "entries should be removed once released")
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "listing-a")
	require.NoError(t, err)
	defer releaseA()

	ctxB, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	releaseB, err := locker.Acquire(ctxB, "listing-b")
	require.NoError(t, err, "a different key must be acquirable while listing-a is held")
	releaseB()
}

func TestLocalLocker_TimeoutReturnsBusy(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "listing-1")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(waitCtx, "listing-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Equal(t, 0, locker.Len())

	// The key is usable again after the timed-out waiter gave up
	release, err = locker.Acquire(ctx, "listing-1")
	require.NoError(t, err)
	release()
}

func TestLocalLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "listing-1")
	require.NoError(t, err)

	release()
	release()

	release2, err := locker.Acquire(ctx, "listing-1")
	require.NoError(t, err)
	release2()
	assert.Equal(t, 0, locker.Len())
}
