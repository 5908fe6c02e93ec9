package forms

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"kabinet/internal/models"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	phoneFormatHint = "<i>Формат: +7XXXXXXXXXX или 8XXXXXXXXXX</i>"

	msgBadName   = "❌ Имя должно содержать минимум 2 буквы и состоять только из букв."
	msgBadPhone  = "❌ Неверный формат номера телефона. Попробуйте снова."
	msgBadDate   = "❌ Неверный формат даты. Используйте ДД.ММ, например 15.03."
	msgPastDate  = "❌ Эта дата уже прошла. Выберите другую."
	msgBadTime   = "❌ Неверный формат времени. Используйте ЧЧ:ММ, например 14:30."
	msgBadAccess = "❌ Введите «бесплатный» или «платный»."
)

var titleCaser = cases.Title(language.Russian)

// monthsGenitive - месяцы для вывода "15 Марта".
var monthsGenitive = [...]string{
	"Января", "Февраля", "Марта", "Апреля", "Мая", "Июня",
	"Июля", "Августа", "Сентября", "Октября", "Ноября", "Декабря",
}

// MonthName returns the capitalised genitive month name.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthsGenitive[m-1]
}

// NormalizeName trims, checks and title-cases a client name.
func NormalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(name) < 2 {
		return "", invalid(KeyName, msgBadName)
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '-':
		default:
			return "", invalid(KeyName, msgBadName)
		}
	}
	if letters < 2 {
		return "", invalid(KeyName, msgBadName)
	}
	return titleCaser.String(name), nil
}

// NormalizePhone приводит номер к виду +7XXXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	phone := strings.Join(strings.Fields(raw), "")
	switch {
	case strings.HasPrefix(phone, "8"):
		phone = "+7" + phone[1:]
	case strings.HasPrefix(phone, "7"):
		phone = "+" + phone
	}

	num, err := phonenumbers.Parse(phone, "RU")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", invalid(KeyPhone, msgBadPhone)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ParseDate accepts DD.MM in now's year and returns "15 Марта".
// Dates before today are rejected.
func ParseDate(raw string, now time.Time) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 {
		return "", invalid(KeyDate, msgBadDate)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", invalid(KeyDate, msgBadDate)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return "", invalid(KeyDate, msgBadDate)
	}

	date := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	// 31.02 нормализуется в март, такие даты не принимаем
	if date.Day() != day || date.Month() != time.Month(month) {
		return "", invalid(KeyDate, msgBadDate)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return "", invalid(KeyDate, msgPastDate)
	}
	return fmt.Sprintf("%02d %s", day, MonthName(date.Month())), nil
}

// ParseTime accepts HH:MM in 24-hour format.
func ParseTime(raw string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return "", invalid(KeyTime, msgBadTime)
	}
	return t.Format("15:04"), nil
}

// ParseAccess matches the free/paid token once, downstream code sees only the enum.
func ParseAccess(raw string) (models.StepAccess, error) {
	access, ok := models.ParseStepAccess(raw)
	if !ok {
		return 0, invalid(KeyIsFree, msgBadAccess)
	}
	return access, nil
}
