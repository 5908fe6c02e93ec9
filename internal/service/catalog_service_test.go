package service

import (
	"context"
	"testing"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService(t *testing.T) {
	db := setupDB(t)
	s := NewCatalogService(db, testLogger())
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, []models.Service{
		{Name: "Индивидуальная консультация", Price: 5000, DurationMinutes: 50, IsActive: true},
		{Name: "Парная терапия", Price: 7000, DurationMinutes: 80, IsActive: true},
		{Name: "Группа", Price: 2000, DurationMinutes: 120, IsActive: false},
	}))

	active, err := s.ActiveServices(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	found, err := s.FindActiveByName(ctx, "  Парная терапия ")
	require.NoError(t, err)
	assert.Equal(t, 7000, found.Price)

	_, err = s.FindActiveByName(ctx, "Группа")
	assert.ErrorIs(t, err, domain.ErrNotFound, "inactive service is hidden")
	_, err = s.FindActiveByName(ctx, "Нет такой")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	toggled, err := s.ToggleService(ctx, found.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	active, err = s.ActiveServices(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, s.DeleteService(ctx, found.ID))
	_, err = s.GetService(ctx, found.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := s.AllServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCatalogService_SeedValidation(t *testing.T) {
	s := NewCatalogService(setupDB(t), testLogger())
	ctx := context.Background()

	assert.Error(t, s.Seed(ctx, []models.Service{{Name: " "}}))
	assert.Error(t, s.Seed(ctx, []models.Service{{Name: "X", Price: -1}}))
}
