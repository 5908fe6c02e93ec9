package forms

import (
	"context"
	"testing"
	"time"

	"kabinet/internal/models"
	"kabinet/internal/repository"
	"kabinet/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Touch(ctx context.Context, user *models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) UpdatePhone(ctx context.Context, id int64, phone string) error {
	return m.Called(ctx, id, phone).Error(0)
}

func (m *mockUsers) Deactivate(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUsers) IsAdmin(id int64) bool {
	return m.Called(id).Bool(0)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) ActiveServices(ctx context.Context) ([]*models.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}

func (m *mockCatalog) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockCatalog) FindActiveByName(ctx context.Context, name string) (*models.Service, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

type mockBookings struct{ mock.Mock }

func (m *mockBookings) CheckCanBook(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockBookings) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookings) UserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyBooking(ctx context.Context, b *models.Booking, u *models.User) error {
	return m.Called(ctx, b, u).Error(0)
}

func (m *mockNotifier) NotifyRegistration(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

type mockFunnels struct{ mock.Mock }

func (m *mockFunnels) CreateFunnel(ctx context.Context, name, description string) (*models.Funnel, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Funnel), args.Error(1)
}

func (m *mockFunnels) GetFunnel(ctx context.Context, id int64) (*models.Funnel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Funnel), args.Error(1)
}

func (m *mockFunnels) AddStep(ctx context.Context, step *models.FunnelStep) error {
	return m.Called(ctx, step).Error(0)
}

type mockBroadcasts struct{ mock.Mock }

func (m *mockBroadcasts) DefaultText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockBroadcasts) SetDefaultText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

type mockLauncher struct{ mock.Mock }

func (m *mockLauncher) Launch(adminID int64, content models.BroadcastContent) {
	m.Called(adminID, content)
}

// testNow - 10 марта 2024, как в сценарии с датами.
var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	engine    *Engine
	states    *service.StateService
	redis     *miniredis.Miniredis
	users     *mockUsers
	catalog   *mockCatalog
	bookings  *mockBookings
	notifier  *mockNotifier
	funnels   *mockFunnels
	broadcast *mockBroadcasts
	launcher  *mockLauncher
	logger    zerolog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		redis:     mr,
		users:     new(mockUsers),
		catalog:   new(mockCatalog),
		bookings:  new(mockBookings),
		notifier:  new(mockNotifier),
		funnels:   new(mockFunnels),
		broadcast: new(mockBroadcasts),
		launcher:  new(mockLauncher),
		logger:    zerolog.Nop(),
	}
	f.states = service.NewStateService(repository.NewRedisStateRepository(client, 0), &f.logger)
	f.engine = f.newEngine()
	return f
}

// newEngine builds a fresh engine over the same state store, as after a restart.
func (f *fixture) newEngine() *Engine {
	userDeps := UserDeps{
		Users:    f.users,
		Catalog:  f.catalog,
		Bookings: f.bookings,
		Notifier: f.notifier,
		Now:      func() time.Time { return testNow },
	}
	adminDeps := AdminDeps{Funnels: f.funnels, Broadcasts: f.broadcast, Launcher: f.launcher}
	return NewEngine(f.states, &f.logger,
		NewBookingForm(userDeps),
		NewRegistrationForm(userDeps, &f.logger),
		NewFunnelForm(adminDeps),
		NewFunnelStepForm(adminDeps),
		NewBroadcastForm(adminDeps),
		NewDefaultTextForm(adminDeps),
	)
}

func (f *fixture) step(t *testing.T, userID int64) string {
	t.Helper()
	state, err := f.states.GetUserState(context.Background(), userID)
	require.NoError(t, err)
	if state == nil {
		return ""
	}
	return state.CurrentStep
}

func (f *fixture) send(t *testing.T, userID int64, text string) Reply {
	t.Helper()
	reply, handled, err := f.engine.Handle(context.Background(), Input{UserID: userID, Text: text})
	require.NoError(t, err)
	require.True(t, handled)
	return reply
}
