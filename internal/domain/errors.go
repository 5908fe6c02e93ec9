package domain

import "errors"

var (
	// ErrNotFound - запись не найдена в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrBookingLimit - у пользователя уже максимум активных заявок.
	ErrBookingLimit = errors.New("booking limit reached")
	// ErrServiceInactive - услуга снята с записи.
	ErrServiceInactive = errors.New("service is not active")
	// ErrNoProgress - пользователь ещё не начинал курс.
	ErrNoProgress = errors.New("funnel progress not found")
	// ErrFunnelInactive - курс выключен администратором.
	ErrFunnelInactive = errors.New("funnel is not active")
	// ErrPhoneRequired - для действия нужен сохранённый телефон.
	ErrPhoneRequired = errors.New("phone number required")
	// ErrForbidden - действие доступно только администратору.
	ErrForbidden = errors.New("forbidden")
)
