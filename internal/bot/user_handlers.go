package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"kabinet/internal/domain"
	"kabinet/internal/forms"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = "ℹ️ <b>Что умеет бот</b>\n\n" +
	btnBook + " - оставить заявку на консультацию\n" +
	btnServices + " - услуги и цены\n" +
	btnCourses + " - бесплатные курсы\n" +
	btnMyCourses + " - ваш прогресс в курсах\n" +
	btnMyBookings + " - ваши заявки\n" +
	btnProfile + " - телефон для связи\n" +
	btnUseful + " - канал, записи эфиров, отзывы\n\n" +
	"/cancel - отменить текущее действие"

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	l := zerolog.Ctx(ctx)
	l.Debug().Str("text", msg.Text).Msg("Message received")

	if msg.IsCommand() {
		if msg.Command() == "cancel" {
			b.handleCancel(ctx, msg)
			return
		}
		// команда прерывает незаконченную форму
		if cancelled, err := b.forms.Cancel(ctx, msg.From.ID); err != nil {
			l.Warn().Err(err).Msg("Failed to drop active form")
		} else if cancelled {
			l.Info().Str("command", msg.Command()).Msg("Form dropped by command")
		}
		b.handleCommand(ctx, msg)
		return
	}

	if strings.TrimSpace(msg.Text) == btnCancel {
		b.handleCancel(ctx, msg)
		return
	}

	if b.continueForm(ctx, msg) {
		return
	}

	b.handleMenuButton(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.sendHTML(chatID, helpText, b.mainMenu(userID))
	case "admin":
		b.showAdminMenu(ctx, chatID, 0, userID)
	case "book":
		b.beginForm(ctx, chatID, userID, forms.FormBooking, nil)
	case "courses":
		b.showCourses(ctx, chatID, userID)
	case "profile":
		b.showProfile(ctx, chatID, userID)
	default:
		b.sendHTML(chatID, "Неизвестная команда. Воспользуйтесь меню или /help.", b.mainMenu(userID))
	}
}

func (b *Bot) handleMenuButton(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	switch strings.TrimSpace(msg.Text) {
	case btnBook:
		b.beginForm(ctx, chatID, userID, forms.FormBooking, nil)
	case btnServices:
		b.showServices(ctx, chatID)
	case btnCourses:
		b.showCourses(ctx, chatID, userID)
	case btnMyCourses:
		b.showMyCourses(ctx, chatID, userID)
	case btnProfile:
		b.showProfile(ctx, chatID, userID)
	case btnMyBookings:
		b.showMyBookings(ctx, chatID, userID)
	case btnUseful:
		b.showUseful(chatID, userID)
	case btnAdmin:
		b.showAdminMenu(ctx, chatID, 0, userID)
	default:
		b.sendHTML(chatID, "Не понимаю 🤔 Воспользуйтесь кнопками меню.", b.mainMenu(userID))
	}
}

// handleStart показывает приветствие. /start course_<id> сразу открывает курс.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID

	name := msg.From.FirstName
	if name == "" {
		name = msg.From.UserName
	}
	text := fmt.Sprintf("👋 Здравствуйте, %s!\n\nЯ бот кабинета <b><i>психолога</i></b>. "+
		"Здесь можно записаться на консультацию, пройти бесплатные курсы и узнать о новых материалах.",
		html.EscapeString(name))
	b.sendHTML(chatID, text, b.mainMenu(userID))

	if arg := msg.CommandArguments(); strings.HasPrefix(arg, "course_") {
		funnelID, err := strconv.ParseInt(strings.TrimPrefix(arg, "course_"), 10, 64)
		if err == nil && funnelID > 0 {
			b.openCourse(ctx, chatID, userID, funnelID)
		}
	}
}

func (b *Bot) showServices(ctx context.Context, chatID int64) {
	services, err := b.catalog.ActiveServices(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(services) == 0 {
		b.sendHTML(chatID, "😔 Сейчас нет доступных услуг.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("💼 <b>Услуги</b>\n\n")
	for _, s := range services {
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n💰 %d ₽", html.EscapeString(s.Name), s.Price))
		if s.DurationMinutes > 0 {
			sb.WriteString(fmt.Sprintf(" · ⏱ %d мин", s.DurationMinutes))
		}
		sb.WriteString("\n")
		if s.Description != "" {
			sb.WriteString(html.EscapeString(s.Description) + "\n")
		}
		sb.WriteString("\n")
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnBook, cbBook)),
	)
	b.sendHTML(chatID, sb.String(), keyboard)
}

func (b *Bot) showProfile(ctx context.Context, chatID, userID int64) {
	user, err := b.users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		b.replyError(ctx, chatID, err)
		return
	}
	if user == nil || !user.HasPhone() {
		b.beginForm(ctx, chatID, userID, forms.FormRegistration, nil)
		return
	}

	text := fmt.Sprintf("👤 <b>Профиль пользователя</b>\n\n<b>Имя:</b> %s\n<b>Телефон:</b> %s\n\n"+
		"<i>Для изменения номера телефона нажмите кнопку ниже</i>",
		html.EscapeString(user.DisplayName()), html.EscapeString(user.Phone))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📞 Изменить телефон", cbChangePhone)),
	)
	b.sendHTML(chatID, text, keyboard)
}

func (b *Bot) showMyBookings(ctx context.Context, chatID, userID int64) {
	bookings, err := b.bookings.UserBookings(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(bookings) == 0 {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnBook, cbBook)),
		)
		b.sendHTML(chatID, "📋 У вас пока нет заявок.", keyboard)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>Ваши заявки</b> (%d из %d)\n\n", len(bookings), b.maxBookings()))
	for _, bk := range bookings {
		sb.WriteString(fmt.Sprintf("<b>#%d %s</b>\n📆 %s в %s\n\n",
			bk.ID, html.EscapeString(bk.ServiceName), html.EscapeString(bk.PreferredDate), html.EscapeString(bk.PreferredTime)))
	}
	sb.WriteString("<i>Психолог свяжется с вами для подтверждения.</i>")
	b.sendHTML(chatID, sb.String(), nil)
}

func (b *Bot) showUseful(chatID, userID int64) {
	keyboard, ok := b.linksKeyboard()
	if !ok {
		b.sendHTML(chatID, "Раздел пока пуст.", b.mainMenu(userID))
		return
	}
	b.sendHTML(chatID, "ℹ️ <b>Полезное</b>\n\nКанал, записи эфиров, отзывы клиентов и подарок для вас:", keyboard)
}
