package bot

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"kabinet/internal/domain"
	"kabinet/internal/forms"
	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) requireAdmin(ctx context.Context, chatID, userID int64) bool {
	if b.users.IsAdmin(userID) {
		return true
	}
	zerolog.Ctx(ctx).Warn().Msg("Admin action denied")
	b.sendHTML(chatID, b.getUserErrorMessage(domain.ErrForbidden), nil)
	return false
}

func (b *Bot) showAdminMenu(ctx context.Context, chatID int64, messageID int, userID int64) {
	if !b.requireAdmin(ctx, chatID, userID) {
		return
	}
	b.editOrSend(chatID, messageID, "🛠 <b>Панель администратора</b>\n\nВыберите раздел:", adminMenuKeyboard())
}

func (b *Bot) showAdminServices(ctx context.Context, chatID int64, messageID int) {
	services, err := b.catalog.AllServices(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("💼 <b>Услуги</b>\n\n")
	if len(services) == 0 {
		sb.WriteString("Список пуст. Услуги загружаются из файла каталога при запуске.")
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, s := range services {
		mark := "✅"
		if !s.IsActive {
			mark = "⏸"
		}
		sb.WriteString(fmt.Sprintf("%s <b>%s</b> · %d ₽\n", mark, html.EscapeString(s.Name), s.Price))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark+" "+s.Name, idData(cbServiceToggle, s.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", idData(cbServiceDelete, s.ID)),
		))
	}
	sb.WriteString("\n<i>Нажмите на услугу, чтобы включить или выключить запись на неё.</i>")
	rows = append(rows, backToAdminRow())
	b.editOrSend(chatID, messageID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) toggleService(ctx context.Context, chatID int64, messageID int, id int64) {
	if _, err := b.catalog.ToggleService(ctx, id); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.showAdminServices(ctx, chatID, messageID)
}

func (b *Bot) deleteService(ctx context.Context, chatID int64, messageID int, id int64) {
	if err := b.catalog.DeleteService(ctx, id); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.showAdminServices(ctx, chatID, messageID)
}

func (b *Bot) deleteBooking(ctx context.Context, chatID int64, messageID int, adminID, id int64) {
	booking, err := b.bookings.DeleteBooking(ctx, id, adminID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	zerolog.Ctx(ctx).Info().Int64("booking_id", booking.ID).Msg("Booking closed by admin")
	b.showAdminBookings(ctx, chatID, messageID, 0)
}

func (b *Bot) showAdminFunnels(ctx context.Context, chatID int64, messageID int) {
	funnels, err := b.funnels.ListFunnels(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("📚 <b>Курсы</b>\n\n")
	if len(funnels) == 0 {
		sb.WriteString("Курсов пока нет.")
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(funnels)+2)
	for _, f := range funnels {
		mark := "✅"
		if !f.IsActive {
			mark = "⏸"
		}
		sb.WriteString(fmt.Sprintf("%s <b>%s</b> · этапов: %d\n", mark, html.EscapeString(f.Name), f.StepsCount))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark+" "+f.Name, idData(cbFunnelManage, f.ID)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("➕ Создать курс", cbFunnelCreate)),
		backToAdminRow(),
	)
	b.editOrSend(chatID, messageID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) showFunnelManage(ctx context.Context, chatID int64, messageID int, funnelID int64) {
	f, err := b.funnels.GetFunnel(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	status := "✅ активен"
	if !f.IsActive {
		status = "⏸ выключен"
	}
	desc := f.Description
	if desc == "" {
		desc = "—"
	}
	text := fmt.Sprintf("📚 <b>%s</b>\n\n📝 %s\n\n📌 Статус: %s\n🔢 Этапов: %d\n🆔 ID: %d",
		html.EscapeString(f.Name), html.EscapeString(desc), status, f.StepsCount, f.ID)
	b.editOrSend(chatID, messageID, text, funnelManageKeyboard(f))
}

func (b *Bot) showFunnelSteps(ctx context.Context, chatID int64, messageID int, funnelID int64) {
	f, err := b.funnels.GetFunnel(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	steps, err := b.funnels.Steps(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>Этапы курса «%s»</b>\n\n", html.EscapeString(f.Name)))
	if len(steps) == 0 {
		sb.WriteString("Этапов пока нет.")
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(steps)+2)
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("%d. <b>%s</b> · %s · %s\n", s.Order, html.EscapeString(s.Title), s.Access(), contentLabel(s.ContentType)))

		other := models.AccessPaid
		if !s.IsFree {
			other = models.AccessFree
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d → %s", s.Order, other), stepData(cbStepAccess, s.ID, funnelID)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 %d", s.Order), stepData(cbStepDelete, s.ID, funnelID)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("➕ Добавить этап", idData(cbFunnelAddStep, funnelID))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ К курсу", idData(cbFunnelManage, funnelID))),
	)
	b.editOrSend(chatID, messageID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func contentLabel(t models.ContentType) string {
	switch t {
	case models.ContentVideo:
		return "🎬 видео"
	case models.ContentAudio:
		return "🎧 аудио"
	default:
		return "📝 текст"
	}
}

func stepData(prefix string, stepID, funnelID int64) string {
	return fmt.Sprintf("%s%d:%d", prefix, stepID, funnelID)
}

func (b *Bot) toggleStepAccess(ctx context.Context, chatID int64, messageID int, stepID, funnelID int64) {
	steps, err := b.funnels.Steps(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	for _, s := range steps {
		if s.ID != stepID {
			continue
		}
		access := models.AccessPaid
		if !s.IsFree {
			access = models.AccessFree
		}
		if err := b.funnels.SetStepAccess(ctx, stepID, access); err != nil {
			b.replyError(ctx, chatID, err)
			return
		}
		b.showFunnelSteps(ctx, chatID, messageID, funnelID)
		return
	}
	b.replyError(ctx, chatID, domain.ErrNotFound)
}

func (b *Bot) deleteStep(ctx context.Context, chatID int64, messageID int, stepID, funnelID int64) {
	if err := b.funnels.DeleteStep(ctx, stepID); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.showFunnelSteps(ctx, chatID, messageID, funnelID)
}

func (b *Bot) toggleFunnel(ctx context.Context, chatID int64, messageID int, funnelID int64) {
	f, err := b.funnels.GetFunnel(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if err := b.funnels.SetFunnelActive(ctx, funnelID, !f.IsActive); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.showFunnelManage(ctx, chatID, messageID, funnelID)
}

func (b *Bot) confirmFunnelDelete(ctx context.Context, chatID int64, messageID int, funnelID int64) {
	f, err := b.funnels.GetFunnel(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	text := fmt.Sprintf("❗ Удалить курс <b>%s</b>?\n\nВместе с ним удалятся все этапы и прогресс пользователей.",
		html.EscapeString(f.Name))
	b.editOrSend(chatID, messageID, text, funnelDeleteConfirmKeyboard(funnelID))
}

func (b *Bot) deleteFunnel(ctx context.Context, chatID int64, messageID int, funnelID int64) {
	if err := b.funnels.DeleteFunnel(ctx, funnelID); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.sendHTML(chatID, "✅ Курс удалён.", nil)
	b.showAdminFunnels(ctx, chatID, messageID)
}

func (b *Bot) showFunnelStats(ctx context.Context, chatID int64, messageID int, funnelID int64) {
	f, err := b.funnels.GetFunnel(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	stats, err := b.funnels.Stats(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	steps, err := b.funnels.Steps(ctx, funnelID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Статистика курса «%s»</b>\n\n", html.EscapeString(f.Name)))
	sb.WriteString(fmt.Sprintf("👥 Начали: <b>%d</b>\n", stats.Started))
	sb.WriteString(fmt.Sprintf("⏳ В процессе: <b>%d</b>\n", stats.InProgress))
	sb.WriteString(fmt.Sprintf("✅ Прошли бесплатную часть: <b>%d</b>\n", stats.CompletedAllFree))
	sb.WriteString(fmt.Sprintf("💰 Остановились на платном этапе: <b>%d</b>\n", stats.StoppedAtPaid))

	if len(stats.StepReach) > 0 {
		sb.WriteString("\n<b>Дошли до этапа:</b>\n")
		orders := make([]int, 0, len(stats.StepReach))
		for order := range stats.StepReach {
			orders = append(orders, order)
		}
		sort.Ints(orders)
		for _, order := range orders {
			title := ""
			if order >= 1 && order <= len(steps) {
				title = " " + html.EscapeString(steps[order-1].Title)
			}
			sb.WriteString(fmt.Sprintf("%d.%s: %d\n", order, title, stats.StepReach[order]))
		}
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ К курсу", idData(cbFunnelManage, funnelID))),
	)
	b.editOrSend(chatID, messageID, sb.String(), keyboard)
}

func (b *Bot) showBroadcastMenu(ctx context.Context, chatID int64, messageID int) {
	text, err := b.broadcasts.DefaultText(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	msg := fmt.Sprintf("📢 <b>Рассылка</b>\n\nВыберите, что отправить всем активным пользователям.\n\n"+
		"📝 Стандартный текст: <i>%s</i>", html.EscapeString(text))
	b.editOrSend(chatID, messageID, msg, broadcastKeyboard())
}

// beginDefaultBroadcast сразу переходит к подтверждению стандартного текста.
func (b *Bot) beginDefaultBroadcast(ctx context.Context, chatID, adminID int64) {
	text, err := b.broadcasts.DefaultText(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.beginForm(ctx, chatID, adminID, forms.FormBroadcast, forms.Values{
		forms.KeyKind: string(models.BroadcastText),
		forms.KeyText: text,
	})
}

func (b *Bot) showAdminStats(ctx context.Context, chatID int64, messageID int) {
	stats, err := b.users.Stats(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	bookings, err := b.bookings.AllBookings(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	funnels, err := b.funnels.ListFunnels(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>Статистика</b>\n\n")
	sb.WriteString("👥 <b>Пользователи</b>\n")
	sb.WriteString(fmt.Sprintf("Всего: <b>%d</b>\n", stats.Total))
	sb.WriteString(fmt.Sprintf("Активных: <b>%d</b>\n", stats.Active))
	sb.WriteString(fmt.Sprintf("С телефоном: <b>%d</b>\n\n", stats.WithPhone))
	sb.WriteString(fmt.Sprintf("📋 Открытых заявок: <b>%d</b>\n", len(bookings)))
	sb.WriteString(fmt.Sprintf("📚 Курсов: <b>%d</b>\n", len(funnels)))

	b.editOrSend(chatID, messageID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(backToAdminRow()))
}

func (b *Bot) sendExport(ctx context.Context, chatID int64) {
	path, err := b.exportToExcel(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if _, err := b.tgService.SendDocument(chatID, path, "📥 Пользователи и заявки"); err != nil {
		b.replyError(ctx, chatID, err)
	}
}
