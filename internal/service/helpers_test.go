package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"kabinet/internal/database"
	"kabinet/internal/events"
	"kabinet/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// eventLog подписывается на шину и запоминает типы событий.
type eventLog struct {
	mu     sync.Mutex
	events []*events.Event
}

func newEventBus(t *testing.T, types ...string) (*events.EventBus, *eventLog) {
	t.Helper()
	bus := events.NewEventBus()
	log := &eventLog{}
	for _, typ := range types {
		bus.Subscribe(typ, func(e *events.Event) error {
			log.mu.Lock()
			defer log.mu.Unlock()
			log.events = append(log.events, e)
			return nil
		})
	}
	return bus, log
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) last() *events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return nil
	}
	return l.events[len(l.events)-1]
}

func seedUser(t *testing.T, db *database.DB, id int64) *models.User {
	t.Helper()
	u := &models.User{TelegramID: id, FirstName: "Анна", Username: "anna"}
	require.NoError(t, db.UpsertUser(context.Background(), u))
	return u
}

func seedService(t *testing.T, db *database.DB, name string, active bool) *models.Service {
	t.Helper()
	s := &models.Service{Name: name, Price: 3000, DurationMinutes: 50, IsActive: true}
	require.NoError(t, db.CreateService(context.Background(), s))
	if !active {
		require.NoError(t, db.SetServiceActive(context.Background(), s.ID, false))
		s.IsActive = false
	}
	return s
}
