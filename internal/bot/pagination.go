package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const bookingsPerPage = 5

type PaginationParams struct {
	ChatID       int64
	MessageID    int // 0 - новое сообщение
	Page         int
	Title        string
	PagePrefix   string
	BackCallback string
}

// renderPaginatedList - отрисовка списка со страницами
func (b *Bot) renderPaginatedList(params PaginationParams, totalCount, itemsPerPage int, renderer func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton)) {
	if itemsPerPage <= 0 {
		itemsPerPage = bookingsPerPage
	}
	if params.Page < 0 {
		params.Page = 0
	}

	totalPages := (totalCount + itemsPerPage - 1) / itemsPerPage
	if params.Page >= totalPages && totalPages > 0 {
		params.Page = totalPages - 1
	}
	startIdx := params.Page * itemsPerPage
	endIdx := startIdx + itemsPerPage
	if endIdx > totalCount {
		endIdx = totalCount
	}

	content, keyboard := renderer(startIdx, endIdx)

	var message strings.Builder
	message.WriteString(params.Title + "\n\n")
	if totalPages > 1 {
		message.WriteString(fmt.Sprintf("Страница %d из %d\n\n", params.Page+1, totalPages))
	}
	message.WriteString(content)

	var navButtons []tgbotapi.InlineKeyboardButton
	if params.Page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", fmt.Sprintf("%s%d", params.PagePrefix, params.Page-1)))
	}
	if endIdx < totalCount {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Вперед ➡️", fmt.Sprintf("%s%d", params.PagePrefix, params.Page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}
	if params.BackCallback != "" {
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад в меню", params.BackCallback),
		))
	}

	b.editOrSend(params.ChatID, params.MessageID, message.String(), tgbotapi.NewInlineKeyboardMarkup(keyboard...))
}

// showAdminBookings - заявки для администратора с кнопкой закрытия.
func (b *Bot) showAdminBookings(ctx context.Context, chatID int64, messageID, page int) {
	bookings, err := b.bookings.AllBookings(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	params := PaginationParams{
		ChatID:       chatID,
		MessageID:    messageID,
		Page:         page,
		Title:        fmt.Sprintf("📋 <b>Заявки</b> (%d)", len(bookings)),
		PagePrefix:   cbAdminBookings,
		BackCallback: cbAdmin,
	}
	if len(bookings) == 0 {
		params.Title = "📋 <b>Заявок нет</b>"
	}
	b.renderPaginatedList(params, len(bookings), bookingsPerPage, func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton) {
		return renderBookings(bookings[startIdx:endIdx])
	})
}

func renderBookings(bookings []*models.Booking) (string, [][]tgbotapi.InlineKeyboardButton) {
	var content strings.Builder
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(bookings))
	for _, bk := range bookings {
		content.WriteString(fmt.Sprintf("<b>Заявка #%d</b>\n", bk.ID))
		content.WriteString(fmt.Sprintf("   👤 %s\n", html.EscapeString(bk.ClientName)))
		content.WriteString(fmt.Sprintf("   📞 %s\n", html.EscapeString(bk.Phone)))
		content.WriteString(fmt.Sprintf("   💼 %s\n", html.EscapeString(bk.ServiceName)))
		content.WriteString(fmt.Sprintf("   📆 %s в %s\n\n", html.EscapeString(bk.PreferredDate), html.EscapeString(bk.PreferredTime)))

		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 Закрыть #%d (%s)", bk.ID, bk.ClientName), idData(cbBookingDelete, bk.ID)),
		))
	}
	return content.String(), keyboard
}
