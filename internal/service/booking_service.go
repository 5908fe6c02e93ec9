package service

import (
	"context"
	"fmt"

	"kabinet/internal/domain"
	"kabinet/internal/events"
	"kabinet/internal/models"

	"github.com/rs/zerolog"
)

type bookingRepository interface {
	domain.BookingRepository
	GetService(ctx context.Context, id int64) (*models.Service, error)
}

type BookingService struct {
	repo       bookingRepository
	eventBus   domain.EventPublisher
	maxPerUser int
	logger     *zerolog.Logger
}

var _ domain.BookingService = (*BookingService)(nil)

func NewBookingService(repo bookingRepository, eventBus domain.EventPublisher, maxPerUser int, logger *zerolog.Logger) *BookingService {
	if maxPerUser <= 0 {
		maxPerUser = models.DefaultMaxBookingsPerUser
	}
	return &BookingService{
		repo:       repo,
		eventBus:   eventBus,
		maxPerUser: maxPerUser,
		logger:     logger,
	}
}

func (s *BookingService) MaxPerUser() int { return s.maxPerUser }

// CheckCanBook returns ErrBookingLimit when the user already holds the maximum of live bookings.
func (s *BookingService) CheckCanBook(ctx context.Context, userID int64) error {
	count, err := s.repo.CountUserBookings(ctx, userID)
	if err != nil {
		return err
	}
	if count >= s.maxPerUser {
		return fmt.Errorf("user %d has %d bookings: %w", userID, count, domain.ErrBookingLimit)
	}
	return nil
}

// CreateBooking re-checks the cap and the service, then stores the booking.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := s.CheckCanBook(ctx, booking.UserID); err != nil {
		return err
	}

	service, err := s.repo.GetService(ctx, booking.ServiceID)
	if err != nil {
		return err
	}
	if !service.IsActive {
		return fmt.Errorf("service %d: %w", service.ID, domain.ErrServiceInactive)
	}
	booking.ServiceName = service.Name

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("user_id", booking.UserID).
		Str("service", booking.ServiceName).
		Msg("Booking created")
	s.publishEvent(events.EventBookingCreated, booking, 0)
	return nil
}

func (s *BookingService) UserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.repo.GetUserBookings(ctx, userID)
}

func (s *BookingService) AllBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.repo.GetAllBookings(ctx)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// DeleteBooking - заявка выполнена или отменена, администратор её удаляет.
func (s *BookingService) DeleteBooking(ctx context.Context, id, adminID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("booking_id", id).Int64("admin_id", adminID).Msg("Booking deleted")
	s.publishEvent(events.EventBookingDeleted, booking, adminID)
	return booking, nil
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, changedByID int64) {
	publish(s.eventBus, s.logger, eventType, events.BookingEventPayload{
		BookingID:     b.ID,
		UserID:        b.UserID,
		ServiceID:     b.ServiceID,
		ServiceName:   b.ServiceName,
		ClientName:    b.ClientName,
		Phone:         b.Phone,
		PreferredDate: b.PreferredDate,
		PreferredTime: b.PreferredTime,
		CreatedAt:     b.CreatedAt,
		ChangedByID:   changedByID,
	})
}
