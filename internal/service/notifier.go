package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type adminSender interface {
	SendHTML(chatID int64, text string, markup interface{}) (tgbotapi.Message, error)
	SendContact(chatID int64, phone, firstName, lastName string) (tgbotapi.Message, error)
}

// AdminNotifier пишет всем администраторам из конфигурации.
type AdminNotifier struct {
	sender adminSender
	admins []int64
	logger *zerolog.Logger
}

var _ domain.Notifier = (*AdminNotifier)(nil)

func NewAdminNotifier(sender adminSender, admins []int64, logger *zerolog.Logger) *AdminNotifier {
	return &AdminNotifier{sender: sender, admins: admins, logger: logger}
}

// NotifyBooking sends a summary and a contact card. It fails only when no admin got the summary.
func (n *AdminNotifier) NotifyBooking(_ context.Context, b *models.Booking, u *models.User) error {
	username := "—"
	if u != nil && u.Username != "" {
		username = "@" + u.Username
	}
	text := fmt.Sprintf(
		"🆕 <b>Новая заявка #%d</b>\n\n"+
			"💼 Услуга: %s\n"+
			"👤 Имя: %s\n"+
			"📞 Телефон: %s\n"+
			"📅 Дата: %s\n"+
			"🕐 Время: %s\n"+
			"💬 Telegram: %s (ID %d)",
		b.ID,
		html.EscapeString(b.ServiceName),
		html.EscapeString(b.ClientName),
		b.Phone,
		b.PreferredDate,
		b.PreferredTime,
		html.EscapeString(username),
		b.UserID,
	)
	return n.broadcast(text, b.Phone, b.ClientName, "")
}

func (n *AdminNotifier) NotifyRegistration(_ context.Context, u *models.User) error {
	username := "—"
	if u.Username != "" {
		username = "@" + u.Username
	}
	text := fmt.Sprintf(
		"📱 <b>Новая регистрация</b>\n\n👤 %s\n📞 %s\n💬 Telegram: %s (ID %d)",
		html.EscapeString(u.DisplayName()),
		u.Phone,
		html.EscapeString(username),
		u.TelegramID,
	)
	return n.broadcast(text, u.Phone, u.FirstName, u.LastName)
}

func (n *AdminNotifier) broadcast(text, phone, firstName, lastName string) error {
	if len(n.admins) == 0 {
		return nil
	}

	delivered := 0
	var errs []error
	for _, adminID := range n.admins {
		if _, err := n.sender.SendHTML(adminID, text, nil); err != nil {
			n.logger.Warn().Err(err).Int64("admin_id", adminID).Msg("Admin notification failed")
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
			continue
		}
		delivered++
		if phone == "" {
			continue
		}
		if firstName == "" {
			firstName = phone
		}
		if _, err := n.sender.SendContact(adminID, phone, firstName, lastName); err != nil {
			n.logger.Warn().Err(err).Int64("admin_id", adminID).Msg("Admin contact card failed")
		}
	}
	if delivered == 0 {
		return fmt.Errorf("notify admins: %w", errors.Join(errs...))
	}
	return nil
}
