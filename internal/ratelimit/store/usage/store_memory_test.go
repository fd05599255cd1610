package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/pkg/requestcontext"
)

// clockAt pins the context clock to a fixed instant.
func clockAt(t time.Time) context.Context {
	return requestcontext.WithClock(context.Background(), func() time.Time { return t })
}

func TestInMemoryStore_LimitEnforced(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	ctx := clockAt(now)

	// Three sequential admissions succeed under limit 3.
	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "usage:u1:chat", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 3-(i+1), res.Remaining)
	}

	// The fourth is denied with zero remaining.
	res, err := store.Allow(ctx, "usage:u1:chat", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)
	assert.Equal(t, 60, res.RetryAfter)
}

func TestInMemoryStore_WindowExpiryReadmits(t *testing.T) {
	store := NewInMemoryStore()
	start := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	ctx := clockAt(start)
	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "usage:u1:chat", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := store.Allow(ctx, "usage:u1:chat", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// Advance past the window: events expire and admission resumes.
	later := clockAt(start.Add(time.Minute + time.Second))
	res, err = store.Allow(later, "usage:u1:chat", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestInMemoryStore_KeysAreIndependent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := clockAt(time.Now())

	res, err := store.Allow(ctx, "usage:u1:chat", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = store.Allow(ctx, "usage:u1:chat", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// A different user is unaffected.
	res, err = store.Allow(ctx, "usage:u2:chat", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestInMemoryStore_Reset(t *testing.T) {
	store := NewInMemoryStore()
	ctx := clockAt(time.Now())

	for i := 0; i < 2; i++ {
		_, err := store.Allow(ctx, "usage:u1:chat", 2, time.Minute)
		require.NoError(t, err)
	}
	count, err := store.CurrentCount(ctx, "usage:u1:chat")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.Reset(ctx, "usage:u1:chat"))

	count, err = store.CurrentCount(ctx, "usage:u1:chat")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInMemoryStore_DeleteOlderThan(t *testing.T) {
	store := NewInMemoryStore()
	start := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	_, err := store.Allow(clockAt(start), "usage:u1:chat", 10, time.Hour)
	require.NoError(t, err)
	_, err = store.Allow(clockAt(start.Add(30*time.Minute)), "usage:u1:chat", 10, time.Hour)
	require.NoError(t, err)

	deleted, err := store.DeleteOlderThan(context.Background(), start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err := store.CurrentCount(clockAt(start.Add(31*time.Minute)), "usage:u1:chat")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Concurrent admissions must never exceed the limit; the store mutex makes
// count+append atomic.
func TestInMemoryStore_ConcurrentAdmissions(t *testing.T) {
	store := NewInMemoryStore()
	ctx := clockAt(time.Now())

	const workers = 50
	const limit = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Allow(ctx, "usage:u1:chat", limit, time.Minute)
			if err == nil && res.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
}

func TestInMemoryStore_WindowStartBoundaryCounts(t *testing.T) {
	store := NewInMemoryStore()
	start := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	res, err := store.Allow(clockAt(start), "usage:u1:chat", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	// Exactly one window later the event sits on the window start and still
	// counts, so the request is denied.
	res, err = store.Allow(clockAt(start.Add(time.Minute)), "usage:u1:chat", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// One instant past the boundary it expires.
	res, err = store.Allow(clockAt(start.Add(time.Minute+time.Nanosecond)), "usage:u1:chat", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
