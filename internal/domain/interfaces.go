package domain

import (
	"context"
	"time"

	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type UserRepository interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateUserPhone(ctx context.Context, telegramID int64, phone string) error
	SetUserActive(ctx context.Context, telegramID int64, active bool) error
	GetActiveUsers(ctx context.Context) ([]*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	GetUserStats(ctx context.Context) (*models.UserStats, error)
}

type ServiceRepository interface {
	CreateService(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetServiceByName(ctx context.Context, name string) (*models.Service, error)
	GetActiveServices(ctx context.Context) ([]*models.Service, error)
	GetAllServices(ctx context.Context) ([]*models.Service, error)
	SetServiceActive(ctx context.Context, id int64, active bool) error
	DeleteService(ctx context.Context, id int64) error
	SyncServices(ctx context.Context, services []models.Service) error
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CountUserBookings(ctx context.Context, userID int64) (int, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetAllBookings(ctx context.Context) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

type FunnelRepository interface {
	CreateFunnel(ctx context.Context, funnel *models.Funnel) error
	GetFunnel(ctx context.Context, id int64) (*models.Funnel, error)
	GetFunnels(ctx context.Context, activeOnly bool) ([]*models.Funnel, error)
	SetFunnelActive(ctx context.Context, id int64, active bool) error
	DeleteFunnel(ctx context.Context, id int64) error

	GetFunnelSteps(ctx context.Context, funnelID int64) ([]models.FunnelStep, error)
	AppendFunnelStep(ctx context.Context, step *models.FunnelStep) error
	DeleteFunnelStep(ctx context.Context, stepID int64) error
	SetStepFree(ctx context.Context, stepID int64, isFree bool) error

	GetOrCreateProgress(ctx context.Context, userID, funnelID int64, now time.Time) (*models.FunnelProgress, bool, error)
	GetProgress(ctx context.Context, userID, funnelID int64) (*models.FunnelProgress, error)
	UpdateProgress(ctx context.Context, progress *models.FunnelProgress) error
	GetUserProgress(ctx context.Context, userID int64) ([]*models.FunnelProgress, error)
	GetFunnelProgress(ctx context.Context, funnelID int64) ([]*models.FunnelProgress, error)
}

type BroadcastRepository interface {
	GetOrCreateBroadcastSettings(ctx context.Context) (*models.BroadcastSettings, error)
	UpdateDefaultBroadcastText(ctx context.Context, text string) error
}

// Repository - всё хранилище целиком.
type Repository interface {
	UserRepository
	ServiceRepository
	BookingRepository
	FunnelRepository
	BroadcastRepository
	PingContext(ctx context.Context) error
}

type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type StateManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string, markup interface{}) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendVideo(chatID int64, fileID, caption string, markup interface{}) (tgbotapi.Message, error)
	SendAudio(chatID int64, fileID, caption string, markup interface{}) (tgbotapi.Message, error)
	SendVideoNote(chatID int64, fileID string) (tgbotapi.Message, error)
	SendContact(chatID int64, phone, firstName, lastName string) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// Notifier - уведомления администраторам. Ошибка возвращается, если не ушло ни одно сообщение.
type Notifier interface {
	NotifyBooking(ctx context.Context, booking *models.Booking, user *models.User) error
	NotifyRegistration(ctx context.Context, user *models.User) error
}

// BroadcastSender доставляет одно сообщение рассылки одному получателю.
type BroadcastSender interface {
	Deliver(ctx context.Context, chatID int64, content models.BroadcastContent) error
}

type UserService interface {
	Touch(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	UpdatePhone(ctx context.Context, telegramID int64, phone string) error
	Deactivate(ctx context.Context, telegramID int64) error
	IsAdmin(telegramID int64) bool
}

type CatalogService interface {
	ActiveServices(ctx context.Context) ([]*models.Service, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	FindActiveByName(ctx context.Context, name string) (*models.Service, error)
}

type BookingService interface {
	CheckCanBook(ctx context.Context, userID int64) error
	CreateBooking(ctx context.Context, booking *models.Booking) error
	UserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
}

type FunnelAuthor interface {
	CreateFunnel(ctx context.Context, name, description string) (*models.Funnel, error)
	GetFunnel(ctx context.Context, id int64) (*models.Funnel, error)
	AddStep(ctx context.Context, step *models.FunnelStep) error
}

type BroadcastService interface {
	DefaultText(ctx context.Context) (string, error)
	SetDefaultText(ctx context.Context, text string) error
}

// BroadcastLauncher запускает рассылку в фоне после подтверждения.
type BroadcastLauncher interface {
	Launch(adminID int64, content models.BroadcastContent)
}
