// Package metrics - метрики Prometheus бота и HTTP API.
package metrics

import (
	"kabinet/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kabinet"

// Metrics - все счётчики процесса. Регистрируются в переданном Registerer,
// тесты используют отдельный prometheus.NewRegistry().
type Metrics struct {
	UpdatesProcessed     *prometheus.CounterVec
	UpdateProcessingTime prometheus.Histogram
	ErrorsTotal          *prometheus.CounterVec
	RateLimited          prometheus.Counter
	FormsTotal           *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	BookingsCreated      *prometheus.CounterVec
	BookingsDeleted      prometheus.Counter
	FunnelEvents         *prometheus.CounterVec
	UsersDeactivated     prometheus.Counter
	BroadcastMessages    *prometheus.CounterVec
	BackupsTotal         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UpdatesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_processed_total",
			Help:      "Telegram updates by kind.",
		}, []string{"kind"}),
		UpdateProcessingTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_processing_time_seconds",
			Help:      "Time spent processing updates.",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors shown to users by kind.",
		}, []string{"kind"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limit.",
		}),
		FormsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forms_total",
			Help:      "Form outcomes by form name.",
		}, []string{"form", "outcome"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		}, []string{"endpoint"}),
		BookingsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created by service.",
		}, []string{"service"}),
		BookingsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_deleted_total",
			Help:      "Bookings closed by admins.",
		}),
		FunnelEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "funnel_events_total",
			Help:      "Funnel progress transitions.",
		}, []string{"event"}),
		UsersDeactivated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_deactivated_total",
			Help:      "Users marked inactive after failed delivery.",
		}),
		BroadcastMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Broadcast deliveries by result.",
		}, []string{"result"}),
		BackupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Database backups by result.",
		}, []string{"result"}),
	}
}

// IncHTTP increments the counter for an endpoint label.
func (m *Metrics) IncHTTP(endpoint string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(endpoint).Inc()
}

// Subscribe wires domain events to counters.
func (m *Metrics) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		m.BookingsCreated.WithLabelValues(p.ServiceName).Inc()
		return nil
	})
	bus.Subscribe(events.EventBookingDeleted, func(_ *events.Event) error {
		m.BookingsDeleted.Inc()
		return nil
	})
	bus.Subscribe(events.EventUserDeactivated, func(_ *events.Event) error {
		m.UsersDeactivated.Inc()
		return nil
	})
	bus.Subscribe(events.EventBroadcastDone, func(e *events.Event) error {
		var p events.BroadcastEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		m.BroadcastMessages.WithLabelValues("sent").Add(float64(p.Sent))
		m.BroadcastMessages.WithLabelValues("failed").Add(float64(p.Failed))
		return nil
	})

	for _, t := range []string{events.EventFunnelStarted, events.EventFunnelAdvanced, events.EventFunnelReset} {
		label := t
		bus.Subscribe(t, func(_ *events.Event) error {
			m.FunnelEvents.WithLabelValues(label).Inc()
			return nil
		})
	}
	bus.Subscribe(events.EventFunnelCompleted, func(e *events.Event) error {
		var p events.FunnelEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		m.FunnelEvents.WithLabelValues(events.EventFunnelCompleted + ":" + p.Status).Inc()
		return nil
	})
}
