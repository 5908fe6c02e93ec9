package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"kabinet/internal/domain"
	"kabinet/internal/events"
	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type broadcastRepository interface {
	domain.BroadcastRepository
	GetActiveUsers(ctx context.Context) ([]*models.User, error)
}

type deactivator interface {
	Deactivate(ctx context.Context, telegramID int64) error
}

type htmlSender interface {
	SendHTML(chatID int64, text string, markup interface{}) (tgbotapi.Message, error)
}

// Result - итог рассылки.
type Result struct {
	Sent   int
	Failed int
}

func (r Result) String() string {
	if r.Sent == 0 && r.Failed == 0 {
		return "Список пользователей пуст"
	}
	return fmt.Sprintf("✅ Рассылка завершена!\n\n📤 Отправлено: %d\n❌ Ошибок: %d", r.Sent, r.Failed)
}

// BroadcastService рассылает сообщение всем активным пользователям пачками.
type BroadcastService struct {
	repo      broadcastRepository
	users     deactivator
	sender    domain.BroadcastSender
	reporter  htmlSender
	eventBus  domain.EventPublisher
	batchSize int
	delay     time.Duration
	logger    *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ domain.BroadcastService  = (*BroadcastService)(nil)
	_ domain.BroadcastLauncher = (*BroadcastService)(nil)
)

type BroadcastOptions struct {
	BatchSize int
	Delay     time.Duration
}

func NewBroadcastService(
	repo broadcastRepository,
	users deactivator,
	sender domain.BroadcastSender,
	reporter htmlSender,
	eventBus domain.EventPublisher,
	opts BroadcastOptions,
	logger *zerolog.Logger,
) *BroadcastService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = models.BroadcastBatchSize
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BroadcastService{
		repo:      repo,
		users:     users,
		sender:    sender,
		reporter:  reporter,
		eventBus:  eventBus,
		batchSize: opts.BatchSize,
		delay:     opts.Delay,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *BroadcastService) DefaultText(ctx context.Context) (string, error) {
	settings, err := s.repo.GetOrCreateBroadcastSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.DefaultText, nil
}

func (s *BroadcastService) SetDefaultText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("default broadcast text must not be empty")
	}
	return s.repo.UpdateDefaultBroadcastText(ctx, text)
}

// Send delivers content to every active user. A failed recipient is deactivated
// and the loop continues. Batches are spaced by the configured delay.
func (s *BroadcastService) Send(ctx context.Context, content models.BroadcastContent) (Result, error) {
	users, err := s.repo.GetActiveUsers(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(users) == 0 {
		return Result{}, nil
	}

	var limiter *rate.Limiter
	if s.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.delay), 1)
	}

	var (
		mu  sync.Mutex
		res Result
	)
	for start := 0; start < len(users); start += s.batchSize {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return res, err
			}
		}
		end := start + s.batchSize
		if end > len(users) {
			end = len(users)
		}

		var wg sync.WaitGroup
		for _, u := range users[start:end] {
			wg.Add(1)
			go func(u *models.User) {
				defer wg.Done()
				err := s.sender.Deliver(ctx, u.TelegramID, content)

				mu.Lock()
				if err == nil {
					res.Sent++
				} else {
					res.Failed++
				}
				mu.Unlock()

				if err == nil {
					return
				}
				s.logger.Warn().Err(err).Int64("user_id", u.TelegramID).Msg("Broadcast delivery failed")
				if derr := s.users.Deactivate(ctx, u.TelegramID); derr != nil {
					s.logger.Error().Err(derr).Int64("user_id", u.TelegramID).Msg("Failed to deactivate user")
				}
			}(u)
		}
		wg.Wait()
	}
	return res, nil
}

// Launch runs Send in the background and reports the result to the admin.
func (s *BroadcastService) Launch(adminID int64, content models.BroadcastContent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		logger := s.logger.With().Int64("admin_id", adminID).Str("kind", string(content.Kind)).Logger()
		logger.Info().Msg("Broadcast started")

		res, err := s.Send(s.ctx, content)
		if err != nil {
			logger.Error().Err(err).Msg("Broadcast aborted")
		} else {
			logger.Info().Int("sent", res.Sent).Int("failed", res.Failed).Msg("Broadcast finished")
		}
		publish(s.eventBus, s.logger, events.EventBroadcastDone, events.BroadcastEventPayload{
			AdminID: adminID,
			Kind:    string(content.Kind),
			Sent:    res.Sent,
			Failed:  res.Failed,
		})

		if s.reporter == nil {
			return
		}
		report := res.String()
		if err != nil {
			report = fmt.Sprintf("⚠️ Рассылка прервана.\n\n📤 Отправлено: %d\n❌ Ошибок: %d", res.Sent, res.Failed)
		} else if desc := describe(content); desc != "" && (res.Sent > 0 || res.Failed > 0) {
			report += "\n\n📝 Контент: <i>\"" + html.EscapeString(desc) + "\"</i>"
		}
		if _, serr := s.reporter.SendHTML(adminID, report, nil); serr != nil {
			logger.Warn().Err(serr).Msg("Failed to report broadcast result")
		}
	}()
}

// Shutdown stops running broadcasts and waits for them to exit.
func (s *BroadcastService) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func describe(c models.BroadcastContent) string {
	switch c.Kind {
	case models.BroadcastText:
		return c.Text
	case models.BroadcastVideo:
		if c.Caption != "" {
			return "видео: " + c.Caption
		}
		return "видео"
	case models.BroadcastVideoNote:
		return "видеокружок"
	}
	return ""
}
