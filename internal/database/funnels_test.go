package database

import (
	"context"
	"testing"
	"time"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFunnel(t *testing.T, db *DB, free ...bool) *models.Funnel {
	t.Helper()
	ctx := context.Background()
	f := &models.Funnel{Name: "Intro", Description: "Вводный курс", IsActive: true}
	require.NoError(t, db.CreateFunnel(ctx, f))
	for i, isFree := range free {
		step := &models.FunnelStep{FunnelID: f.ID, Title: "Day" + string(rune('1'+i)), Content: "text", IsFree: isFree}
		require.NoError(t, db.AppendFunnelStep(ctx, step))
	}
	return f
}

func TestAppendFunnelStepOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	f := seedFunnel(t, db, true, true)

	step := &models.FunnelStep{FunnelID: f.ID, Title: "Видео", Content: "Видео урок", ContentType: models.ContentVideo, FileID: "file-1", IsFree: false}
	require.NoError(t, db.AppendFunnelStep(ctx, step))
	assert.Equal(t, 3, step.Order)

	steps, err := db.GetFunnelSteps(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.Order)
	}
	assert.Equal(t, models.ContentVideo, steps[2].ContentType)
	assert.Equal(t, "file-1", steps[2].FileID)
	assert.False(t, steps[2].IsFree)
	assert.Equal(t, models.ContentText, steps[0].ContentType)

	got, err := db.GetFunnel(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StepsCount)
}

func TestAppendFunnelStepUnknownFunnel(t *testing.T) {
	db := setupTestDB(t)
	err := db.AppendFunnelStep(context.Background(), &models.FunnelStep{FunnelID: 42, Title: "x", IsFree: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteFunnelStepKeepsOrderContiguous(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	f := seedFunnel(t, db, true, true, true, false)
	steps, err := db.GetFunnelSteps(ctx, f.ID)
	require.NoError(t, err)

	require.NoError(t, db.DeleteFunnelStep(ctx, steps[1].ID))

	steps, err = db.GetFunnelSteps(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{steps[0].Order, steps[1].Order, steps[2].Order})
	assert.Equal(t, "Day1", steps[0].Title)
	assert.Equal(t, "Day3", steps[1].Title)

	next := &models.FunnelStep{FunnelID: f.ID, Title: "Day5", IsFree: true}
	require.NoError(t, db.AppendFunnelStep(ctx, next))
	assert.Equal(t, 4, next.Order)

	assert.ErrorIs(t, db.DeleteFunnelStep(ctx, 9999), domain.ErrNotFound)
}

func TestSetStepFree(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	f := seedFunnel(t, db, false)
	steps, err := db.GetFunnelSteps(ctx, f.ID)
	require.NoError(t, err)

	require.NoError(t, db.SetStepFree(ctx, steps[0].ID, true))
	steps, err = db.GetFunnelSteps(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, steps[0].IsFree)
}

func TestDeleteFunnelCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedUser(t, db, 1)
	f := seedFunnel(t, db, true, true)
	other := seedFunnel(t, db, true)

	_, _, err := db.GetOrCreateProgress(ctx, 1, f.ID, time.Now())
	require.NoError(t, err)
	_, _, err = db.GetOrCreateProgress(ctx, 1, other.ID, time.Now())
	require.NoError(t, err)

	require.NoError(t, db.DeleteFunnel(ctx, f.ID))

	var steps, progress int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM funnel_steps WHERE funnel_id = ?`, f.ID).Scan(&steps))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM funnel_progress WHERE funnel_id = ?`, f.ID).Scan(&progress))
	assert.Zero(t, steps)
	assert.Zero(t, progress)

	remaining, err := db.GetUserProgress(ctx, 1)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].FunnelID)

	assert.ErrorIs(t, db.DeleteFunnel(ctx, f.ID), domain.ErrNotFound)
}

func TestGetFunnelsActiveFilter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := seedFunnel(t, db, true)
	b := seedFunnel(t, db)
	require.NoError(t, db.SetFunnelActive(ctx, b.ID, false))

	active, err := db.GetFunnels(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, 1, active[0].StepsCount)

	all, err := db.GetFunnels(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
