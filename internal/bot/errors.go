package bot

import (
	"errors"
	"fmt"

	"kabinet/internal/domain"
	"kabinet/internal/forms"
	"kabinet/internal/funnel"
)

const genericErrorText = "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."

func (b *Bot) getUserErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, domain.ErrBookingLimit):
		return fmt.Sprintf("⚠️ У вас уже %d активные заявки. Новую можно оставить, когда психолог обработает одну из них.",
			b.maxBookings())
	case errors.Is(err, domain.ErrServiceInactive):
		return "⚠️ Эта услуга сейчас недоступна для записи. Выберите другую."
	case errors.Is(err, forms.ErrNoServices):
		return "😔 Сейчас нет доступных услуг для записи. Попробуйте позже."
	case errors.Is(err, domain.ErrNoProgress):
		return "❌ Прогресс не найден. Начните курс заново."
	case errors.Is(err, domain.ErrFunnelInactive):
		return "❌ Курс не найден или неактивен."
	case errors.Is(err, funnel.ErrNoSteps):
		return "❌ Курс еще не готов. Попробуйте позже."
	case errors.Is(err, funnel.ErrStepOutOfRange):
		return "❌ Этап не найден. Начните курс заново."
	case errors.Is(err, domain.ErrForbidden):
		return "⛔ Этот раздел доступен только администратору."
	case errors.Is(err, domain.ErrNotFound):
		return "❌ Запись не найдена. Возможно, она уже удалена."
	case errors.Is(err, forms.ErrBrokenState):
		return "⚠️ Диалог устарел. Начните заново из меню."
	}

	return genericErrorText
}

func (b *Bot) maxBookings() int {
	if b.bookings != nil {
		return b.bookings.MaxPerUser()
	}
	return b.config.Bot.MaxBookingsPerUser
}
