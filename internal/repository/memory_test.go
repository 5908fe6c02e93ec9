package repository

import (
	"context"
	"testing"
	"time"

	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(0)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.UserState{UserID: 123, CurrentStep: "test", TempData: map[string]interface{}{"a": "b"}}
		require.NoError(t, repo.SetState(ctx, state))

		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		assert.Equal(t, state, got)
	})

	t.Run("StoredCopyIsIsolated", func(t *testing.T) {
		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		got.TempData["a"] = "changed"

		again, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		assert.Equal(t, "b", again.TempData["a"])
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.ClearState(ctx, 123))
		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(456)
		allowed, _ := repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
	})
}

func TestMemoryStateRepositoryTTL(t *testing.T) {
	repo := NewMemoryStateRepository(time.Minute)
	now := time.Now()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 1, CurrentStep: "x"}))
	now = now.Add(2 * time.Minute)

	got, err := repo.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}
