package service

import (
	"kabinet/internal/domain"

	"github.com/rs/zerolog"
)

// publish отправляет событие, если шина подключена. Ошибки подписчиков только логируются.
func publish(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, payload interface{}) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
