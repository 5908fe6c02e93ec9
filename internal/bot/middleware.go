package bot

import (
	"context"
	"time"

	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const rateLimitText = "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного."

func (b *Bot) withRecovery(ctx context.Context, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.countError("panic")
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allowUpdate - лимит сообщений на пользователя. Администраторы не ограничены.
// Если хранилище лимитов недоступно, сообщение пропускается.
func (b *Bot) allowUpdate(ctx context.Context, userID int64) bool {
	if b.stateService == nil || b.users.IsAdmin(userID) {
		return true
	}
	limit := b.config.Bot.RateLimitMessages
	if limit <= 0 {
		return true
	}
	window := time.Duration(b.config.Bot.RateLimitWindow) * time.Second

	allowed, err := b.stateService.CheckRateLimit(ctx, userID, limit, window)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Rate limit check failed")
		return true
	}
	if !allowed {
		zerolog.Ctx(ctx).Warn().Msg("Rate limit exceeded")
		if b.metrics != nil {
			b.metrics.RateLimited.Inc()
		}
	}
	return allowed
}

// touchUser создаёт пользователя при первом обращении и обновляет имя и активность.
func (b *Bot) touchUser(ctx context.Context, from *tgbotapi.User) {
	_, err := b.users.Touch(ctx, &models.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to track user activity")
	}
}
