package bot

import (
	"context"
	"errors"
	"os"
	"time"

	"kabinet/internal/config"
	"kabinet/internal/domain"
	"kabinet/internal/forms"
	"kabinet/internal/funnel"
	"kabinet/internal/metrics"
	"kabinet/internal/models"
	"kabinet/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type userService interface {
	domain.UserService
	AllUsers(ctx context.Context) ([]*models.User, error)
	Stats(ctx context.Context) (*models.UserStats, error)
}

type catalogService interface {
	domain.CatalogService
	AllServices(ctx context.Context) ([]*models.Service, error)
	ToggleService(ctx context.Context, id int64) (*models.Service, error)
	DeleteService(ctx context.Context, id int64) error
}

type bookingService interface {
	domain.BookingService
	MaxPerUser() int
	AllBookings(ctx context.Context) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id, adminID int64) (*models.Booking, error)
}

type funnelService interface {
	Render(ctx context.Context, userID, funnelID int64) (funnel.View, error)
	Advance(ctx context.Context, userID, funnelID int64) (funnel.View, error)
	Reset(ctx context.Context, userID, funnelID int64) (funnel.View, error)
	Overview(ctx context.Context, userID int64) ([]service.CourseProgress, error)
	GetFunnel(ctx context.Context, id int64) (*models.Funnel, error)
	ListFunnels(ctx context.Context) ([]*models.Funnel, error)
	ActiveFunnels(ctx context.Context) ([]*models.Funnel, error)
	Steps(ctx context.Context, funnelID int64) ([]models.FunnelStep, error)
	DeleteStep(ctx context.Context, stepID int64) error
	SetStepAccess(ctx context.Context, stepID int64, access models.StepAccess) error
	SetFunnelActive(ctx context.Context, id int64, active bool) error
	DeleteFunnel(ctx context.Context, id int64) error
	Stats(ctx context.Context, funnelID int64) (models.FunnelStats, error)
}

type Bot struct {
	tgService    domain.TelegramService
	config       *config.Config
	stateService domain.StateManager
	forms        *forms.Engine
	users        userService
	catalog      catalogService
	bookings     bookingService
	funnels      funnelService
	broadcasts   domain.BroadcastService
	metrics      *metrics.Metrics
	logger       *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	stateService domain.StateManager,
	engine *forms.Engine,
	users userService,
	catalog catalogService,
	bookings bookingService,
	funnels funnelService,
	broadcasts domain.BroadcastService,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil {
		return nil, errors.New("telegram service is required")
	}
	if engine == nil {
		return nil, errors.New("form engine is required")
	}

	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tgService:    tgService,
		config:       config,
		stateService: stateService,
		forms:        engine,
		users:        users,
		catalog:      catalog,
		bookings:     bookings,
		funnels:      funnels,
		broadcasts:   broadcasts,
		metrics:      m,
		logger:       logger,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.Telegram.Timeout
	if u.Timeout <= 0 {
		u.Timeout = 60
	}

	b.registerCommands()
	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.processUpdate(ctx, update)
		}
	}
}

// Stop прекращает long polling.
func (b *Bot) Stop() {
	b.tgService.StopReceivingUpdates()
}

func (b *Bot) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Главное меню"},
		tgbotapi.BotCommand{Command: "help", Description: "Возможности бота"},
		tgbotapi.BotCommand{Command: "cancel", Description: "Отменить текущее действие"},
	)
	if _, err := b.tgService.Request(cmds); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to register bot commands")
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	kind := updateKind(update)
	defer b.observeUpdate(kind, start)

	from := update.SentFrom()
	if from == nil || from.IsBot {
		return
	}

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Int64("user_id", from.ID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(updateCtx, func() {
		if !b.allowUpdate(updateCtx, from.ID) {
			if update.Message != nil {
				b.sendHTML(update.Message.Chat.ID, rateLimitText, nil)
			}
			return
		}

		b.touchUser(updateCtx, from)

		switch {
		case update.CallbackQuery != nil:
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
		case update.Message != nil:
			b.handleMessage(updateCtx, update.Message)
		}
	})
}

func updateKind(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil:
		return "message"
	default:
		return "other"
	}
}
