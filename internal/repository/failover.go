package repository

import (
	"context"
	"sync/atomic"
	"time"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStateRepository пишет в primary (Redis), а при его ошибке переключается на fallback.
// Раз в recoveryInterval пробует вернуться на primary.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStateRepository) markDown(op string, err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary state repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverStateRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary state repository recovered")
	}
}

func (r *FailoverStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if r.usePrimary() {
		wasDown := r.isDown.Load()
		state, err := r.primary.GetState(ctx, userID)
		if err == nil {
			r.markUp()
			if state == nil && wasDown {
				return r.migrate(ctx, userID)
			}
			return state, nil
		}
		r.markDown("get", err)
	}
	return r.fallback.GetState(ctx, userID)
}

// migrate переносит форму, начатую во время сбоя, обратно в primary.
func (r *FailoverStateRepository) migrate(ctx context.Context, userID int64) (*models.UserState, error) {
	state, err := r.fallback.GetState(ctx, userID)
	if err != nil || state == nil {
		return state, err
	}
	if err := r.primary.SetState(ctx, state); err != nil {
		r.markDown("migrate", err)
		return state, nil
	}
	if err := r.fallback.ClearState(ctx, userID); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to clear migrated fallback state")
	}
	return state, nil
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if r.usePrimary() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown("set", err)
	}
	return r.fallback.SetState(ctx, state)
}

// ClearState чистит оба хранилища, чтобы после восстановления не всплыла старая форма.
func (r *FailoverStateRepository) ClearState(ctx context.Context, userID int64) error {
	fallbackErr := r.fallback.ClearState(ctx, userID)
	if r.usePrimary() {
		err := r.primary.ClearState(ctx, userID)
		if err == nil {
			r.markUp()
			return fallbackErr
		}
		r.markDown("clear", err)
	}
	return fallbackErr
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown("rate_limit", err)
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
