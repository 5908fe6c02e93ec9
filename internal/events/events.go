// Package events - внутренняя шина событий. Подписчики: метрики и выгрузка заявок в Google Sheets.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	EventBookingCreated  = "booking.created"
	EventBookingDeleted  = "booking.deleted"
	EventFunnelStarted   = "funnel.started"
	EventFunnelAdvanced  = "funnel.advanced"
	EventFunnelCompleted = "funnel.completed"
	EventFunnelReset     = "funnel.reset"
	EventUserRegistered  = "user.registered"
	EventUserDeactivated = "user.deactivated"
	EventBroadcastDone   = "broadcast.done"
)

// BookingEventPayload - снимок заявки для подписчиков.
type BookingEventPayload struct {
	BookingID     int64     `json:"booking_id"`
	UserID        int64     `json:"user_id"`
	ServiceID     int64     `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	ClientName    string    `json:"client_name"`
	Phone         string    `json:"phone"`
	PreferredDate string    `json:"preferred_date"`
	PreferredTime string    `json:"preferred_time"`
	CreatedAt     time.Time `json:"created_at"`
	ChangedByID   int64     `json:"changed_by_id,omitempty"`
}

// FunnelEventPayload - изменение прогресса в курсе. Status заполняется для funnel.completed.
type FunnelEventPayload struct {
	UserID   int64  `json:"user_id"`
	FunnelID int64  `json:"funnel_id"`
	Step     int    `json:"step"`
	Status   string `json:"status,omitempty"`
}

// UserEventPayload - регистрация или деактивация пользователя.
type UserEventPayload struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

// BroadcastEventPayload - итог рассылки.
type BroadcastEventPayload struct {
	AdminID int64  `json:"admin_id"`
	Kind    string `json:"kind"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}

// Event - событие с JSON-нагрузкой.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus - синхронный pub/sub внутри процесса.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler even if some fail and returns their joined errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
