package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"kabinet/internal/domain"
	"kabinet/internal/forms"
	"kabinet/internal/funnel"
	"kabinet/internal/models"
	"kabinet/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Подпись к видео и аудио ограничена Telegram.
const captionLimit = 1024

func (b *Bot) showCourses(ctx context.Context, chatID, userID int64) {
	funnels, err := b.funnels.ActiveFunnels(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	switch len(funnels) {
	case 0:
		b.sendHTML(chatID, "❌ В данный момент нет доступных курсов.\nПопробуйте позже!", nil)
	case 1:
		b.openCourse(ctx, chatID, userID, funnels[0].ID)
	default:
		b.sendHTML(chatID, "📚 <b>Доступные курсы</b>\n\nВыберите курс, который хотите пройти:", coursesKeyboard(funnels))
	}
}

// openCourse показывает текущий шаг курса. Без телефона сначала идёт регистрация,
// после неё курс открывается автоматически.
func (b *Bot) openCourse(ctx context.Context, chatID, userID, funnelID int64) {
	user, err := b.users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		b.replyError(ctx, chatID, err)
		return
	}
	if user == nil || !user.HasPhone() {
		b.beginForm(ctx, chatID, userID, forms.FormRegistration, forms.Values{forms.KeyFunnelID: funnelID})
		return
	}

	view, err := b.funnels.Render(ctx, userID, funnelID)
	if err != nil {
		b.replyCourseError(ctx, chatID, err)
		return
	}
	b.showStep(ctx, chatID, funnelID, view)
}

func (b *Bot) advanceCourse(ctx context.Context, chatID, userID, funnelID int64) {
	view, err := b.funnels.Advance(ctx, userID, funnelID)
	if err != nil {
		b.replyCourseError(ctx, chatID, err)
		return
	}
	b.showStep(ctx, chatID, funnelID, view)
}

func (b *Bot) resetCourse(ctx context.Context, chatID, userID, funnelID int64) {
	view, err := b.funnels.Reset(ctx, userID, funnelID)
	if err != nil {
		b.replyCourseError(ctx, chatID, err)
		return
	}
	b.sendHTML(chatID, "🔄 Курс начат заново.", nil)
	b.showStep(ctx, chatID, funnelID, view)
}

func (b *Bot) replyCourseError(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		err = fmt.Errorf("%w: %w", domain.ErrFunnelInactive, err)
	}
	b.replyError(ctx, chatID, err)
}

// stepText собирает текст экрана курса.
func (b *Bot) stepText(view funnel.View) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📚 <b>%s</b>\n\n", html.EscapeString(view.Step.Title)))
	if view.Step.Content != "" {
		sb.WriteString(html.EscapeString(view.Step.Content) + "\n\n")
	}

	switch view.Kind {
	case funnel.ViewFinished:
		sb.WriteString("🎉 <b>Поздравляем! Вы завершили курс!</b>\n\n")
		sb.WriteString("Теперь вы можете записаться на индивидуальную консультацию.")
	case funnel.ViewPaidWall:
		sb.WriteString("💰 <b>Это платный этап курса</b>\n\n")
		sb.WriteString("Для продолжения обучения запишитесь к психологу.")
		if contact := strings.TrimPrefix(b.config.Links.Contact, "@"); contact != "" {
			sb.WriteString("\n\n📞 <b>Свяжитесь с психологом:</b> @" + html.EscapeString(contact))
		}
	default:
		sb.WriteString(fmt.Sprintf("<i>Урок %d из %d</i>", view.Index, view.Total))
	}
	return sb.String()
}

// showStep отправляет шаг: видео и аудио с подписью, длинный текст отдельным сообщением.
func (b *Bot) showStep(ctx context.Context, chatID, funnelID int64, view funnel.View) {
	text := b.stepText(view)
	keyboard := courseKeyboard(funnelID, view)

	step := view.Step
	if step.FileID == "" || step.ContentType == models.ContentText {
		b.sendHTML(chatID, text, keyboard)
		return
	}

	caption, rest := text, ""
	if len([]rune(text)) > captionLimit {
		caption, rest = fmt.Sprintf("📚 <b>%s</b>", html.EscapeString(step.Title)), text
	}
	var media interface{} = keyboard
	if rest != "" {
		media = nil
	}

	var err error
	switch step.ContentType {
	case models.ContentVideo:
		_, err = b.tgService.SendVideo(chatID, step.FileID, caption, media)
	case models.ContentAudio:
		_, err = b.tgService.SendAudio(chatID, step.FileID, caption, media)
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("step_id", step.ID).Msg("Failed to send step media")
		rest = text
	}
	if rest != "" {
		b.sendHTML(chatID, rest, keyboard)
	}
}

func (b *Bot) showMyCourses(ctx context.Context, chatID, userID int64) {
	courses, err := b.funnels.Overview(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(courses) == 0 {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnCourses, cbCourses)),
		)
		b.sendHTML(chatID, "📖 Вы ещё не начали ни одного курса.", keyboard)
		return
	}

	var sb strings.Builder
	sb.WriteString("📖 <b>Мои курсы</b>\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(courses))
	for _, c := range courses {
		sb.WriteString(fmt.Sprintf("📚 <b>%s</b>\nЭтап %d из %d · %s\n\n",
			html.EscapeString(c.Funnel.Name), c.Position.Step, c.Total, statusLabel(c.Position.Status)))
		if c.Funnel.IsActive {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("▶️ "+c.Funnel.Name, idData(cbSelectCourse, c.Funnel.ID)),
			))
		}
	}
	if len(rows) == 0 {
		b.sendHTML(chatID, sb.String(), nil)
		return
	}
	b.sendHTML(chatID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func statusLabel(s funnel.Status) string {
	switch s {
	case funnel.StatusCompletedAllFree:
		return "✅ пройден"
	case funnel.StatusStoppedAtPaid:
		return "💰 дальше платные этапы"
	default:
		return "⏳ в процессе"
	}
}

func (b *Bot) showProgress(ctx context.Context, chatID, userID, funnelID int64) {
	courses, err := b.funnels.Overview(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	var course *service.CourseProgress
	for i := range courses {
		if courses[i].Funnel.ID == funnelID {
			course = &courses[i]
			break
		}
	}
	if course == nil {
		b.sendHTML(chatID, "❌ Прогресс не найден. Начните курс заново.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Ваш прогресс в курсе «%s»</b>\n\n", html.EscapeString(course.Funnel.Name)))
	sb.WriteString(fmt.Sprintf("📈 <b>Этап:</b> %d из %d\n", course.Position.Step, course.Total))
	sb.WriteString(fmt.Sprintf("📅 <b>Начато:</b> %s\n", course.Progress.StartedAt.Format("02.01.2006")))
	sb.WriteString(fmt.Sprintf("📌 <b>Статус:</b> %s\n", statusLabel(course.Position.Status)))
	if course.Progress.CompletedAt != nil && course.Position.Status != funnel.StatusInProgress {
		sb.WriteString(fmt.Sprintf("🏁 <b>Завершено:</b> %s\n", course.Progress.CompletedAt.Format("02.01.2006")))
	}

	if course.Position.Step > 0 {
		steps, err := b.funnels.Steps(ctx, funnelID)
		if err != nil {
			b.replyError(ctx, chatID, err)
			return
		}
		if course.Position.Step <= len(steps) {
			step := steps[course.Position.Step-1]
			sb.WriteString(fmt.Sprintf("\n📚 <b>Текущий урок:</b> %s\n💰 <b>Тип:</b> %s",
				html.EscapeString(step.Title), step.Access()))
		}
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("▶️ Продолжить", idData(cbSelectCourse, funnelID))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔄 Начать заново", idData(cbFunnelReset, funnelID))),
		backToMenuRow(),
	)
	b.sendHTML(chatID, sb.String(), keyboard)
}
