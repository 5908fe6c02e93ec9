package service

import (
	"context"
	"testing"

	"kabinet/internal/domain"
	"kabinet/internal/events"
	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(userID, serviceID int64) *models.Booking {
	return &models.Booking{
		UserID:        userID,
		ServiceID:     serviceID,
		ClientName:    "Анна",
		Phone:         "+79991234567",
		PreferredDate: "15 Марта",
		PreferredTime: "10:00",
	}
}

func TestBookingService_CreateBooking(t *testing.T) {
	db := setupDB(t)
	bus, log := newEventBus(t, events.EventBookingCreated)
	s := NewBookingService(db, bus, 0, testLogger())
	ctx := context.Background()

	seedUser(t, db, 1)
	svc := seedService(t, db, "Консультация", true)

	b := newBooking(1, svc.ID)
	require.NoError(t, s.CreateBooking(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, "Консультация", b.ServiceName)
	assert.Equal(t, models.DefaultMaxBookingsPerUser, s.MaxPerUser())

	require.Equal(t, []string{events.EventBookingCreated}, log.types())
	var payload events.BookingEventPayload
	require.NoError(t, log.last().Decode(&payload))
	assert.Equal(t, b.ID, payload.BookingID)
	assert.Equal(t, "15 Марта", payload.PreferredDate)
}

func TestBookingService_LimitPerUser(t *testing.T) {
	db := setupDB(t)
	s := NewBookingService(db, nil, 3, testLogger())
	ctx := context.Background()

	seedUser(t, db, 1)
	seedUser(t, db, 2)
	svc := seedService(t, db, "Консультация", true)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CheckCanBook(ctx, 1))
		require.NoError(t, s.CreateBooking(ctx, newBooking(1, svc.ID)))
	}

	assert.ErrorIs(t, s.CheckCanBook(ctx, 1), domain.ErrBookingLimit)
	assert.ErrorIs(t, s.CreateBooking(ctx, newBooking(1, svc.ID)), domain.ErrBookingLimit)
	assert.NoError(t, s.CheckCanBook(ctx, 2), "limit is per user")

	list, err := s.UserBookings(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// после удаления администратором место освобождается
	_, err = s.DeleteBooking(ctx, list[0].ID, 99)
	require.NoError(t, err)
	assert.NoError(t, s.CheckCanBook(ctx, 1))
}

func TestBookingService_InactiveService(t *testing.T) {
	db := setupDB(t)
	s := NewBookingService(db, nil, 3, testLogger())
	seedUser(t, db, 1)
	svc := seedService(t, db, "Группа", false)

	err := s.CreateBooking(context.Background(), newBooking(1, svc.ID))
	assert.ErrorIs(t, err, domain.ErrServiceInactive)
}

func TestBookingService_DeleteBooking(t *testing.T) {
	db := setupDB(t)
	bus, log := newEventBus(t, events.EventBookingDeleted)
	s := NewBookingService(db, bus, 3, testLogger())
	ctx := context.Background()

	seedUser(t, db, 1)
	svc := seedService(t, db, "Консультация", true)
	b := newBooking(1, svc.ID)
	require.NoError(t, s.CreateBooking(ctx, b))

	deleted, err := s.DeleteBooking(ctx, b.ID, 77)
	require.NoError(t, err)
	assert.Equal(t, b.ID, deleted.ID)

	var payload events.BookingEventPayload
	require.NoError(t, log.last().Decode(&payload))
	assert.Equal(t, int64(77), payload.ChangedByID)

	_, err = s.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.DeleteBooking(ctx, b.ID, 77)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
