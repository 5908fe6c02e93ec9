package repository

import (
	"context"
	"testing"
	"time"

	"kabinet/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStateRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisStateRepository(client, 0)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.UserState{
			UserID:      123,
			CurrentStep: "booking:name",
			TempData:    map[string]interface{}{"service_id": int64(5), "service_name": "Консультация"},
		}

		require.NoError(t, repo.SetState(ctx, state))

		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.CurrentStep, got.CurrentStep)
		assert.Equal(t, int64(5), got.GetInt64("service_id"))
		assert.Equal(t, "Консультация", got.GetString("service_name"))
	})

	t.Run("StateDoesNotExpireWithoutTTL", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 321, CurrentStep: "booking:date"}))
		s.FastForward(30 * 24 * time.Hour)

		got, err := repo.GetState(ctx, 321)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "booking:date", got.CurrentStep)
	})

	t.Run("StateExpiresWithTTL", func(t *testing.T) {
		withTTL := NewRedisStateRepository(client, time.Hour)
		require.NoError(t, withTTL.SetState(ctx, &models.UserState{UserID: 654, CurrentStep: "x"}))
		s.FastForward(2 * time.Hour)

		got, err := withTTL.GetState(ctx, 654)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetNonExistentState", func(t *testing.T) {
		got, err := repo.GetState(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 456, CurrentStep: "test"}))
		require.NoError(t, repo.ClearState(ctx, 456))

		got, err := repo.GetState(ctx, 456)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptState", func(t *testing.T) {
		require.NoError(t, s.Set(stateKey(777), "{not json"))
		_, err := repo.GetState(ctx, 777)
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(789)
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, userID, 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisStateRepository(nil, 0)
		_, err := repo.GetState(ctx, 123)
		assert.ErrorContains(t, err, "redis client is nil")
		assert.Error(t, repo.SetState(ctx, &models.UserState{UserID: 1}))
		assert.Error(t, repo.ClearState(ctx, 1))
	})

	t.Run("PingAndClose", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
		assert.NoError(t, Close(client))
		assert.Error(t, Ping(ctx, client))
	})
}
