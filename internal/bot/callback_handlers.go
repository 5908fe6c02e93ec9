package bot

import (
	"context"
	"strconv"
	"strings"

	"kabinet/internal/forms"
	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	data := callback.Data
	userID := callback.From.ID

	// Отвечаем на callback сразу, чтобы убрать "часики"
	if err := b.tgService.AnswerCallback(callback.ID, ""); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to answer callback")
	}

	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if strings.HasPrefix(data, cbAdmin) {
		if !b.requireAdmin(ctx, chatID, userID) {
			return
		}
		b.handleAdminCallback(ctx, chatID, messageID, userID, data)
		return
	}

	switch {
	case data == cbMainMenu:
		b.sendHTML(chatID, "Главное меню", b.mainMenu(userID))
	case data == cbCourses:
		b.showCourses(ctx, chatID, userID)
	case data == cbBook:
		b.beginForm(ctx, chatID, userID, forms.FormBooking, nil)
	case data == cbMaterials:
		b.showUseful(chatID, userID)
	case data == cbChangePhone:
		b.beginForm(ctx, chatID, userID, forms.FormRegistration, nil)
	case strings.HasPrefix(data, cbSelectCourse):
		if id, ok := parseID(data, cbSelectCourse); ok {
			b.openCourse(ctx, chatID, userID, id)
		}
	case strings.HasPrefix(data, cbFunnelNext):
		if id, ok := parseID(data, cbFunnelNext); ok {
			b.advanceCourse(ctx, chatID, userID, id)
		}
	case strings.HasPrefix(data, cbFunnelProgress):
		if id, ok := parseID(data, cbFunnelProgress); ok {
			b.showProgress(ctx, chatID, userID, id)
		}
	case strings.HasPrefix(data, cbFunnelReset):
		if id, ok := parseID(data, cbFunnelReset); ok {
			b.resetCourse(ctx, chatID, userID, id)
		}
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown callback")
	}
}

func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, messageID int, adminID int64, data string) {
	switch {
	case data == cbAdmin:
		b.showAdminMenu(ctx, chatID, messageID, adminID)
	case data == cbAdminServices:
		b.showAdminServices(ctx, chatID, messageID)
	case strings.HasPrefix(data, cbServiceToggle):
		if id, ok := parseID(data, cbServiceToggle); ok {
			b.toggleService(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbServiceDelete):
		if id, ok := parseID(data, cbServiceDelete); ok {
			b.deleteService(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbAdminBookings):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbAdminBookings))
		b.showAdminBookings(ctx, chatID, messageID, page)
	case strings.HasPrefix(data, cbBookingDelete):
		if id, ok := parseID(data, cbBookingDelete); ok {
			b.deleteBooking(ctx, chatID, messageID, adminID, id)
		}
	case data == cbAdminFunnels:
		b.showAdminFunnels(ctx, chatID, messageID)
	case data == cbFunnelCreate:
		b.beginForm(ctx, chatID, adminID, forms.FormFunnel, nil)
	case strings.HasPrefix(data, cbFunnelSteps):
		if id, ok := parseID(data, cbFunnelSteps); ok {
			b.showFunnelSteps(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbFunnelAddStep):
		if id, ok := parseID(data, cbFunnelAddStep); ok {
			b.beginForm(ctx, chatID, adminID, forms.FormFunnelStep, forms.Values{forms.KeyFunnelID: id})
		}
	case strings.HasPrefix(data, cbFunnelToggle):
		if id, ok := parseID(data, cbFunnelToggle); ok {
			b.toggleFunnel(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbFunnelStats):
		if id, ok := parseID(data, cbFunnelStats); ok {
			b.showFunnelStats(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbFunnelDeleteOK):
		if id, ok := parseID(data, cbFunnelDeleteOK); ok {
			b.deleteFunnel(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbFunnelDelete):
		if id, ok := parseID(data, cbFunnelDelete); ok {
			b.confirmFunnelDelete(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbFunnelManage):
		if id, ok := parseID(data, cbFunnelManage); ok {
			b.showFunnelManage(ctx, chatID, messageID, id)
		}
	case strings.HasPrefix(data, cbStepAccess):
		if stepID, funnelID, ok := parseStepIDs(data, cbStepAccess); ok {
			b.toggleStepAccess(ctx, chatID, messageID, stepID, funnelID)
		}
	case strings.HasPrefix(data, cbStepDelete):
		if stepID, funnelID, ok := parseStepIDs(data, cbStepDelete); ok {
			b.deleteStep(ctx, chatID, messageID, stepID, funnelID)
		}
	case data == cbAdminBroadcast:
		b.showBroadcastMenu(ctx, chatID, messageID)
	case data == cbBroadcastDefault:
		b.beginDefaultBroadcast(ctx, chatID, adminID)
	case data == cbBroadcastEditText:
		b.beginForm(ctx, chatID, adminID, forms.FormDefaultText, nil)
	case strings.HasPrefix(data, cbBroadcastKind):
		kind := models.BroadcastKind(strings.TrimPrefix(data, cbBroadcastKind))
		b.beginForm(ctx, chatID, adminID, forms.FormBroadcast, forms.Values{forms.KeyKind: string(kind)})
	case data == cbAdminStats:
		b.showAdminStats(ctx, chatID, messageID)
	case data == cbAdminExport:
		b.sendExport(ctx, chatID)
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown admin callback")
	}
}

func parseID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	return id, err == nil && id > 0
}

// parseStepIDs разбирает "<prefix><step_id>:<funnel_id>".
func parseStepIDs(data, prefix string) (stepID, funnelID int64, ok bool) {
	left, right, found := strings.Cut(strings.TrimPrefix(data, prefix), ":")
	if !found {
		return 0, 0, false
	}
	stepID, err1 := strconv.ParseInt(left, 10, 64)
	funnelID, err2 := strconv.ParseInt(right, 10, 64)
	return stepID, funnelID, err1 == nil && err2 == nil && stepID > 0 && funnelID > 0
}
