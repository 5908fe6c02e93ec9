package database

import (
	"context"
	"testing"

	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s, err := db.GetOrCreateBroadcastSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBroadcastText, s.DefaultText)

	require.NoError(t, db.UpdateDefaultBroadcastText(ctx, "Новый текст"))

	s, err = db.GetOrCreateBroadcastSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Новый текст", s.DefaultText)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM broadcast_settings`).Scan(&rows))
	assert.Equal(t, 1, rows)
}
