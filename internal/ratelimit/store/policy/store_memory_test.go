package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/ratelimit/models"
	dErrors "cortex/pkg/domain-errors"
)

func TestInMemoryStore_GetMissing(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), "chat")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestInMemoryStore_UpsertAndGet(t *testing.T) {
	store := NewInMemoryStore()

	p := &models.Policy{
		FeatureKey:    "chat",
		MaxAttempts:   3,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
		Enabled:       true,
	}
	require.NoError(t, store.Upsert(context.Background(), p))

	got, err := store.Get(context.Background(), "chat")
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxAttempts)
	assert.Equal(t, time.Minute, got.Window)
	assert.True(t, got.Enabled)
	assert.False(t, got.UpdatedAt.IsZero())

	// Upsert replaces in place.
	p.MaxAttempts = 10
	require.NoError(t, store.Upsert(context.Background(), p))
	got, err = store.Get(context.Background(), "chat")
	require.NoError(t, err)
	assert.Equal(t, 10, got.MaxAttempts)
}

func TestInMemoryStore_UpsertInvalid(t *testing.T) {
	store := NewInMemoryStore()

	err := store.Upsert(context.Background(), &models.Policy{FeatureKey: "chat", MaxAttempts: 0, Window: time.Minute})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
