package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	corelock "pharmaflow/internal/core/lock"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "inventory:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.slots, "idle keys are dropped")
}

func TestLocal_IndependentKeys(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocal_TimesOutWithConflict(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "qc:1")
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, "qc:1")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	assert.Equal(t, 409, apperror.GetHTTPStatus(err))
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal(time.Second)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	again()
}

func TestAcquireAll_SortsAndDeduplicates(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := corelock.AcquireAll(ctx, l, "b", "a", "b")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "a")
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	release()
	again, err := corelock.AcquireAll(ctx, l, "a", "b")
	require.NoError(t, err)
	again()
}

func TestAcquireAll_ReleasesOnFailure(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	holdB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)

	_, err = corelock.AcquireAll(ctx, l, "a", "b")
	require.Error(t, err)
	holdB()

	// "a" was released when "b" could not be taken
	releaseA, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	releaseA()
}
