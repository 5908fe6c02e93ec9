package bot

import (
	"fmt"

	"kabinet/internal/funnel"
	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Кнопки главного меню.
const (
	btnBook       = "📅 Записаться"
	btnCourses    = "📚 Курсы"
	btnMyCourses  = "📖 Мои курсы"
	btnProfile    = "👤 Профиль"
	btnMyBookings = "📋 Мои записи"
	btnUseful     = "ℹ️ Полезное"
	btnServices   = "💼 Услуги"
	btnAdmin      = "🛠 Админ-панель"
	btnCancel     = "❌ Отмена"
)

// Данные inline-кнопок. Идентификаторы дописываются после двоеточия.
const (
	cbMainMenu       = "main_menu"
	cbCourses        = "courses"
	cbSelectCourse   = "select_course:"
	cbFunnelNext     = "funnel_next:"
	cbFunnelProgress = "funnel_progress:"
	cbFunnelReset    = "funnel_reset:"
	cbBook           = "book"
	cbMaterials      = "materials"
	cbChangePhone    = "change_phone"

	cbAdmin             = "adm"
	cbAdminServices     = "adm_services"
	cbServiceToggle     = "adm_svc_toggle:"
	cbServiceDelete     = "adm_svc_del:"
	cbAdminBookings     = "adm_bookings:"
	cbBookingDelete     = "adm_bk_del:"
	cbAdminFunnels      = "adm_funnels"
	cbFunnelCreate      = "adm_fn_create"
	cbFunnelManage      = "adm_fn:"
	cbFunnelSteps       = "adm_fn_steps:"
	cbFunnelAddStep     = "adm_fn_add:"
	cbFunnelToggle      = "adm_fn_toggle:"
	cbFunnelStats       = "adm_fn_stats:"
	cbFunnelDelete      = "adm_fn_del:"
	cbFunnelDeleteOK    = "adm_fn_del_ok:"
	cbStepAccess        = "adm_st_access:"
	cbStepDelete        = "adm_st_del:"
	cbAdminBroadcast    = "adm_broadcast"
	cbBroadcastKind     = "adm_bc:"
	cbBroadcastDefault  = "adm_bc_default"
	cbBroadcastEditText = "adm_bc_edit_default"
	cbAdminStats        = "adm_stats"
	cbAdminExport       = "adm_export"
)

func (b *Bot) mainMenu(userID int64) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBook), tgbotapi.NewKeyboardButton(btnServices)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCourses), tgbotapi.NewKeyboardButton(btnMyCourses)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMyBookings), tgbotapi.NewKeyboardButton(btnProfile)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnUseful)),
	}
	if b.users.IsAdmin(userID) {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnAdmin)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func choicesKeyboard(choices []string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(c)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	keyboard.OneTimeKeyboard = true
	return keyboard
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("📱 Поделиться контактом")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	)
	keyboard.ResizeKeyboard = true
	keyboard.OneTimeKeyboard = true
	return keyboard
}

func idData(prefix string, id int64) string {
	return fmt.Sprintf("%s%d", prefix, id)
}

func backToMenuRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 В главное меню", cbMainMenu))
}

// courseKeyboard - кнопки под шагом курса, зависят от вида экрана.
func courseKeyboard(funnelID int64, view funnel.View) tgbotapi.InlineKeyboardMarkup {
	progress := tgbotapi.NewInlineKeyboardButtonData("📋 Мой прогресс", idData(cbFunnelProgress, funnelID))
	book := tgbotapi.NewInlineKeyboardButtonData("💼 Записаться на консультацию", cbBook)

	switch view.Kind {
	case funnel.ViewFinished:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(book),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📚 Больше материалов", cbMaterials)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Начать заново", idData(cbFunnelReset, funnelID))),
			backToMenuRow(),
		)
	case funnel.ViewPaidWall:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(book),
			tgbotapi.NewInlineKeyboardRow(progress),
			backToMenuRow(),
		)
	default:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("➡️ Следующий урок", idData(cbFunnelNext, funnelID))),
			tgbotapi.NewInlineKeyboardRow(progress),
			backToMenuRow(),
		)
	}
}

func coursesKeyboard(funnels []*models.Funnel) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(funnels)+1)
	for _, f := range funnels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 "+f.Name, idData(cbSelectCourse, f.ID)),
		))
	}
	rows = append(rows, backToMenuRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// linksKeyboard - внешние ссылки из конфигурации. Пустые пропускаются.
func (b *Bot) linksKeyboard() (tgbotapi.InlineKeyboardMarkup, bool) {
	links := b.config.Links
	var rows [][]tgbotapi.InlineKeyboardButton
	add := func(title, url string) {
		if url != "" {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(title, url)))
		}
	}
	add("📣 Канал", links.Channel)
	add("🎧 Записи эфиров", links.Recordings)
	add("💬 Отзывы", links.Reviews)
	add("🎁 Подарок", links.Gift)
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💼 Услуги", cbAdminServices),
			tgbotapi.NewInlineKeyboardButtonData("📋 Заявки", idData(cbAdminBookings, 0)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 Курсы", cbAdminFunnels),
			tgbotapi.NewInlineKeyboardButtonData("📢 Рассылка", cbAdminBroadcast),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", cbAdminStats),
			tgbotapi.NewInlineKeyboardButtonData("📥 Экспорт", cbAdminExport),
		),
	)
}

func backToAdminRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ В админ-панель", cbAdmin))
}

func funnelManageKeyboard(f *models.Funnel) tgbotapi.InlineKeyboardMarkup {
	toggle := "⏸ Выключить"
	if !f.IsActive {
		toggle = "▶️ Включить"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить этап", idData(cbFunnelAddStep, f.ID)),
			tgbotapi.NewInlineKeyboardButtonData("📋 Этапы курса", idData(cbFunnelSteps, f.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", idData(cbFunnelStats, f.ID)),
			tgbotapi.NewInlineKeyboardButtonData(toggle, idData(cbFunnelToggle, f.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Удалить курс", idData(cbFunnelDelete, f.ID))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ К списку курсов", cbAdminFunnels)),
	)
}

func funnelDeleteConfirmKeyboard(funnelID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, удалить", idData(cbFunnelDeleteOK, funnelID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", idData(cbFunnelManage, funnelID)),
		),
	)
}

func broadcastKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Текст", cbBroadcastKind+string(models.BroadcastText)),
			tgbotapi.NewInlineKeyboardButtonData("🎬 Видео", cbBroadcastKind+string(models.BroadcastVideo)),
			tgbotapi.NewInlineKeyboardButtonData("⭕ Кружок", cbBroadcastKind+string(models.BroadcastVideoNote)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📢 Отправить стандартный текст", cbBroadcastDefault)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⚙️ Изменить стандартный текст", cbBroadcastEditText)),
		backToAdminRow(),
	)
}
