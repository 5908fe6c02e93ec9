package service

import (
	"context"
	"fmt"

	"kabinet/internal/domain"
	"kabinet/internal/events"
	"kabinet/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo     domain.UserRepository
	eventBus domain.EventPublisher
	admins   []int64
	adminSet map[int64]bool
	logger   *zerolog.Logger
}

var _ domain.UserService = (*UserService)(nil)

func NewUserService(repo domain.UserRepository, eventBus domain.EventPublisher, admins []int64, logger *zerolog.Logger) *UserService {
	adminSet := make(map[int64]bool, len(admins))
	for _, id := range admins {
		adminSet[id] = true
	}
	return &UserService{
		repo:     repo,
		eventBus: eventBus,
		admins:   admins,
		adminSet: adminSet,
		logger:   logger,
	}
}

func (s *UserService) IsAdmin(telegramID int64) bool {
	return s.adminSet[telegramID]
}

// Admins returns the configured admin ids in config order.
func (s *UserService) Admins() []int64 {
	return s.admins
}

// Touch - get-or-create: обновляет имя, время активности и снова делает пользователя активным.
func (s *UserService) Touch(ctx context.Context, user *models.User) (*models.User, error) {
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, user.TelegramID)
}

func (s *UserService) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUser(ctx, telegramID)
}

// UpdatePhone сохраняет телефон; это и есть регистрация пользователя.
func (s *UserService) UpdatePhone(ctx context.Context, telegramID int64, phone string) error {
	if err := s.repo.UpdateUserPhone(ctx, telegramID, phone); err != nil {
		return fmt.Errorf("update phone: %w", err)
	}
	publish(s.eventBus, s.logger, events.EventUserRegistered, events.UserEventPayload{UserID: telegramID})
	return nil
}

// Deactivate помечает пользователя неактивным: он заблокировал бота или удалил чат.
func (s *UserService) Deactivate(ctx context.Context, telegramID int64) error {
	if err := s.repo.SetUserActive(ctx, telegramID, false); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	s.logger.Info().Int64("user_id", telegramID).Msg("User deactivated")
	publish(s.eventBus, s.logger, events.EventUserDeactivated, events.UserEventPayload{UserID: telegramID, Reason: "delivery_failed"})
	return nil
}

func (s *UserService) ActiveUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetActiveUsers(ctx)
}

func (s *UserService) AllUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetAllUsers(ctx)
}

func (s *UserService) Stats(ctx context.Context) (*models.UserStats, error) {
	return s.repo.GetUserStats(ctx)
}
