package models

import "time"

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultMaxBookingsPerUser максимум одновременных заявок у одного пользователя
	DefaultMaxBookingsPerUser = 3

	// BroadcastBatchSize размер пачки при рассылке
	BroadcastBatchSize = 30

	// BroadcastBatchDelay пауза между пачками рассылки
	BroadcastBatchDelay = time.Second

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// ServicesCacheSize размер LRU-кэша услуг
	ServicesCacheSize = 128

	// DefaultBroadcastText текст рассылки, пока администратор его не изменил
	DefaultBroadcastText = "Здравствуйте! У нас есть новости для вас."
)
