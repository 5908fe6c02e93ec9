package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService - услуги, на которые можно записаться.
type CatalogService struct {
	repo   domain.ServiceRepository
	logger *zerolog.Logger
}

var _ domain.CatalogService = (*CatalogService)(nil)

func NewCatalogService(repo domain.ServiceRepository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

func (s *CatalogService) ActiveServices(ctx context.Context) ([]*models.Service, error) {
	return s.repo.GetActiveServices(ctx)
}

func (s *CatalogService) AllServices(ctx context.Context) ([]*models.Service, error) {
	return s.repo.GetAllServices(ctx)
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return s.repo.GetService(ctx, id)
}

// FindActiveByName ищет услугу по тексту кнопки. Выключенная услуга считается ненайденной.
func (s *CatalogService) FindActiveByName(ctx context.Context, name string) (*models.Service, error) {
	service, err := s.repo.GetServiceByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if !service.IsActive {
		return nil, fmt.Errorf("service %q: %w", service.Name, domain.ErrNotFound)
	}
	return service, nil
}

// ToggleService включает или выключает услугу и возвращает новое состояние.
func (s *CatalogService) ToggleService(ctx context.Context, id int64) (*models.Service, error) {
	service, err := s.repo.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetServiceActive(ctx, id, !service.IsActive); err != nil {
		return nil, err
	}
	service.IsActive = !service.IsActive
	s.logger.Info().Int64("service_id", id).Bool("active", service.IsActive).Msg("Service toggled")
	return service, nil
}

// DeleteService удаляет услугу вместе с заявками на неё.
func (s *CatalogService) DeleteService(ctx context.Context, id int64) error {
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("service_id", id).Msg("Service deleted")
	return nil
}

// Seed приводит каталог к списку из файла услуг.
func (s *CatalogService) Seed(ctx context.Context, services []models.Service) error {
	for i := range services {
		if strings.TrimSpace(services[i].Name) == "" {
			return errors.New("service name is required")
		}
		if services[i].Price < 0 || services[i].DurationMinutes < 0 {
			return fmt.Errorf("service %q: price and duration must not be negative", services[i].Name)
		}
	}
	if err := s.repo.SyncServices(ctx, services); err != nil {
		return err
	}
	s.logger.Info().Int("count", len(services)).Msg("Services synced from seed file")
	return nil
}
