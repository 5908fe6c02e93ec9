package models

import "time"

// User - клиент бота. Идентификатор совпадает с Telegram ID.
type User struct {
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	IsActive     bool      `json:"is_active"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns the name shown to admins.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "Без имени"
	}
}

// HasPhone reports whether the user already passed phone registration.
func (u *User) HasPhone() bool {
	return u != nil && u.Phone != ""
}

// UserStats - сводка по базе пользователей.
type UserStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	WithPhone int `json:"with_phone"`
}
