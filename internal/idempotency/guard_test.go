package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardWindow(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "pay-1:approved")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.Acquire(ctx, "pay-1:approved")
	assert.False(t, ok)

	ok, _ = g.Acquire(ctx, "pay-1:rejected")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = g.Acquire(ctx, "pay-1:approved")
	assert.True(t, ok)
}

func TestMemoryGuardRelease(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "pay-1:approved")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, "pay-1:approved"))
	ok, _ = g.Acquire(ctx, "pay-1:approved")
	assert.True(t, ok)
}

func TestMemoryGuardConcurrentAcquire(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Acquire(context.Background(), "same"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
