package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kabinet/internal/domain"
	"kabinet/internal/events"
	"kabinet/internal/funnel"
	"kabinet/internal/models"

	"github.com/rs/zerolog"
)

// FunnelService хранит прогресс и шаги курсов, решения о шаге принимает пакет funnel.
type FunnelService struct {
	repo     domain.FunnelRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

var _ domain.FunnelAuthor = (*FunnelService)(nil)

func NewFunnelService(repo domain.FunnelRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *FunnelService {
	return &FunnelService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// CourseProgress - курс пользователя с выведенной позицией.
type CourseProgress struct {
	Funnel   *models.Funnel
	Progress *models.FunnelProgress
	Position funnel.Position
	Total    int
}

// Start creates the progress record on first entry and returns the existing one otherwise.
func (s *FunnelService) Start(ctx context.Context, userID, funnelID int64) (*models.FunnelProgress, error) {
	f, err := s.repo.GetFunnel(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		return nil, fmt.Errorf("funnel %d: %w", funnelID, domain.ErrFunnelInactive)
	}

	progress, created, err := s.repo.GetOrCreateProgress(ctx, userID, funnelID, s.now())
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info().Int64("user_id", userID).Int64("funnel_id", funnelID).Msg("Funnel started")
		publish(s.eventBus, s.logger, events.EventFunnelStarted, events.FunnelEventPayload{UserID: userID, FunnelID: funnelID, Step: 1})
	}
	return progress, nil
}

// Render starts the course if needed and returns what the user should see now.
func (s *FunnelService) Render(ctx context.Context, userID, funnelID int64) (funnel.View, error) {
	progress, err := s.Start(ctx, userID, funnelID)
	if err != nil {
		return funnel.View{}, err
	}
	steps, err := s.repo.GetFunnelSteps(ctx, funnelID)
	if err != nil {
		return funnel.View{}, err
	}
	return s.render(ctx, steps, progress)
}

func (s *FunnelService) render(ctx context.Context, steps []models.FunnelStep, progress *models.FunnelProgress) (funnel.View, error) {
	wasCompleted := progress.IsCompleted
	view, changed, err := funnel.Render(steps, progress, s.now())
	if changed {
		if uerr := s.repo.UpdateProgress(ctx, progress); uerr != nil {
			return funnel.View{}, uerr
		}
		if !wasCompleted && progress.IsCompleted {
			s.publishCompleted(steps, progress)
		}
	}
	if err != nil {
		return funnel.View{}, err
	}
	return view, nil
}

// Advance moves the user one step forward and renders the result.
// Without a progress record nothing is written and ErrNoProgress is returned.
func (s *FunnelService) Advance(ctx context.Context, userID, funnelID int64) (funnel.View, error) {
	progress, err := s.repo.GetProgress(ctx, userID, funnelID)
	if errors.Is(err, domain.ErrNotFound) {
		return funnel.View{}, fmt.Errorf("user %d funnel %d: %w", userID, funnelID, domain.ErrNoProgress)
	}
	if err != nil {
		return funnel.View{}, err
	}
	steps, err := s.repo.GetFunnelSteps(ctx, funnelID)
	if err != nil {
		return funnel.View{}, err
	}

	wasCompleted := progress.IsCompleted
	if funnel.Advance(steps, progress, s.now()) {
		if err := s.repo.UpdateProgress(ctx, progress); err != nil {
			return funnel.View{}, err
		}
		publish(s.eventBus, s.logger, events.EventFunnelAdvanced, events.FunnelEventPayload{
			UserID: userID, FunnelID: funnelID, Step: progress.CurrentStep,
		})
		if !wasCompleted && progress.IsCompleted {
			s.publishCompleted(steps, progress)
		}
	}
	return s.render(ctx, steps, progress)
}

// Reset начинает курс заново с первого шага.
func (s *FunnelService) Reset(ctx context.Context, userID, funnelID int64) (funnel.View, error) {
	progress, err := s.Start(ctx, userID, funnelID)
	if err != nil {
		return funnel.View{}, err
	}
	funnel.Reset(progress, s.now())
	if err := s.repo.UpdateProgress(ctx, progress); err != nil {
		return funnel.View{}, err
	}
	publish(s.eventBus, s.logger, events.EventFunnelReset, events.FunnelEventPayload{UserID: userID, FunnelID: funnelID, Step: 1})

	steps, err := s.repo.GetFunnelSteps(ctx, funnelID)
	if err != nil {
		return funnel.View{}, err
	}
	return s.render(ctx, steps, progress)
}

// Overview - все курсы пользователя. Удалённые курсы пропускаются.
func (s *FunnelService) Overview(ctx context.Context, userID int64) ([]CourseProgress, error) {
	records, err := s.repo.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]CourseProgress, 0, len(records))
	for _, p := range records {
		f, err := s.repo.GetFunnel(ctx, p.FunnelID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		steps, err := s.repo.GetFunnelSteps(ctx, p.FunnelID)
		if err != nil {
			return nil, err
		}
		out = append(out, CourseProgress{
			Funnel:   f,
			Progress: p,
			Position: funnel.Classify(steps, p),
			Total:    len(steps),
		})
	}
	return out, nil
}

func (s *FunnelService) CreateFunnel(ctx context.Context, name, description string) (*models.Funnel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("funnel name is required")
	}
	f := &models.Funnel{Name: name, Description: strings.TrimSpace(description), IsActive: true}
	if err := s.repo.CreateFunnel(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("funnel_id", f.ID).Str("name", f.Name).Msg("Funnel created")
	return f, nil
}

func (s *FunnelService) GetFunnel(ctx context.Context, id int64) (*models.Funnel, error) {
	return s.repo.GetFunnel(ctx, id)
}

func (s *FunnelService) ListFunnels(ctx context.Context) ([]*models.Funnel, error) {
	return s.repo.GetFunnels(ctx, false)
}

func (s *FunnelService) ActiveFunnels(ctx context.Context) ([]*models.Funnel, error) {
	return s.repo.GetFunnels(ctx, true)
}

func (s *FunnelService) Steps(ctx context.Context, funnelID int64) ([]models.FunnelStep, error) {
	return s.repo.GetFunnelSteps(ctx, funnelID)
}

// AddStep appends the step; the store assigns order = count+1.
func (s *FunnelService) AddStep(ctx context.Context, step *models.FunnelStep) error {
	if !step.ContentType.Valid() {
		return fmt.Errorf("unknown content type %q", step.ContentType)
	}
	if step.ContentType != models.ContentText && step.FileID == "" {
		return fmt.Errorf("%s step requires a file", step.ContentType)
	}
	if err := s.repo.AppendFunnelStep(ctx, step); err != nil {
		return err
	}
	s.logger.Info().
		Int64("funnel_id", step.FunnelID).
		Int("order", step.Order).
		Str("access", step.Access().String()).
		Msg("Funnel step added")
	return nil
}

// DeleteStep удаляет шаг, остальные перенумеровываются без пропусков.
func (s *FunnelService) DeleteStep(ctx context.Context, stepID int64) error {
	return s.repo.DeleteFunnelStep(ctx, stepID)
}

func (s *FunnelService) SetStepAccess(ctx context.Context, stepID int64, access models.StepAccess) error {
	return s.repo.SetStepFree(ctx, stepID, access.IsFree())
}

func (s *FunnelService) SetFunnelActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetFunnelActive(ctx, id, active)
}

// DeleteFunnel удаляет курс вместе с шагами и прогрессом.
func (s *FunnelService) DeleteFunnel(ctx context.Context, id int64) error {
	if err := s.repo.DeleteFunnel(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("funnel_id", id).Msg("Funnel deleted")
	return nil
}

func (s *FunnelService) Stats(ctx context.Context, funnelID int64) (models.FunnelStats, error) {
	steps, err := s.repo.GetFunnelSteps(ctx, funnelID)
	if err != nil {
		return models.FunnelStats{}, err
	}
	progress, err := s.repo.GetFunnelProgress(ctx, funnelID)
	if err != nil {
		return models.FunnelStats{}, err
	}
	return funnel.Tally(funnelID, steps, progress), nil
}

func (s *FunnelService) publishCompleted(steps []models.FunnelStep, p *models.FunnelProgress) {
	pos := funnel.Classify(steps, p)
	s.logger.Info().
		Int64("user_id", p.UserID).
		Int64("funnel_id", p.FunnelID).
		Str("status", pos.Status.String()).
		Msg("Funnel completed")
	publish(s.eventBus, s.logger, events.EventFunnelCompleted, events.FunnelEventPayload{
		UserID:   p.UserID,
		FunnelID: p.FunnelID,
		Step:     pos.Step,
		Status:   pos.Status.String(),
	})
}
