package forms

import (
	"context"
	"errors"
	"testing"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var consultation = &models.Service{ID: 5, Name: "Консультация", Price: 3000, DurationMinutes: 60, IsActive: true}

func (f *fixture) expectBookingEntry(userID int64, user *models.User) {
	f.bookings.On("CheckCanBook", mock.Anything, userID).Return(nil).Once()
	f.catalog.On("ActiveServices", mock.Anything).Return([]*models.Service{consultation}, nil)
	if user == nil {
		f.users.On("GetUser", mock.Anything, userID).Return(nil, domain.ErrNotFound).Once()
	} else {
		f.users.On("GetUser", mock.Anything, userID).Return(user, nil).Once()
	}
}

func TestBookingFormFullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(100)

	f.expectBookingEntry(userID, nil)
	reply, err := f.engine.Begin(ctx, userID, FormBooking, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Консультация"}, reply.Choices)
	assert.Equal(t, "booking:service", f.step(t, userID))

	f.catalog.On("FindActiveByName", mock.Anything, "Консультация").Return(consultation, nil).Once()
	reply = f.send(t, userID, "Консультация")
	assert.True(t, reply.RemoveKeyboard)
	assert.Equal(t, "booking:name", f.step(t, userID))

	f.send(t, userID, "  анна  ")
	assert.Equal(t, "booking:phone", f.step(t, userID))

	// неверный номер: тот же вопрос ещё раз
	reply = f.send(t, userID, "123")
	assert.Contains(t, reply.Text, msgBadPhone)
	assert.True(t, reply.RequestContact)
	assert.Equal(t, "booking:phone", f.step(t, userID))

	f.send(t, userID, "8 999 123 45 67")
	assert.Equal(t, "booking:date", f.step(t, userID))

	reply = f.send(t, userID, "05.03")
	assert.Contains(t, reply.Text, msgPastDate)
	assert.Equal(t, "booking:date", f.step(t, userID))

	f.send(t, userID, "15.03")
	assert.Equal(t, "booking:time", f.step(t, userID))

	reply = f.send(t, userID, "25:99")
	assert.Contains(t, reply.Text, msgBadTime)

	saved := &models.User{TelegramID: userID, FirstName: "Анна"}
	f.bookings.On("CreateBooking", mock.Anything, mock.MatchedBy(func(b *models.Booking) bool {
		return b.UserID == userID && b.ServiceID == 5 && b.ServiceName == "Консультация" &&
			b.ClientName == "Анна" && b.Phone == "+79991234567" &&
			b.PreferredDate == "15 Марта" && b.PreferredTime == "14:30"
	})).Return(nil).Once()
	f.users.On("GetUser", mock.Anything, userID).Return(saved, nil).Once()
	f.users.On("UpdatePhone", mock.Anything, userID, "+79991234567").Return(nil).Once()
	f.notifier.On("NotifyBooking", mock.Anything, mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Phone == "+79991234567"
	})).Return(nil).Once()

	reply = f.send(t, userID, "14:30")
	assert.Contains(t, reply.Text, "Заявка принята")
	assert.Contains(t, reply.Text, "15 Марта")
	assert.True(t, reply.Menu)
	assert.Equal(t, "", f.step(t, userID))

	f.bookings.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestBookingFormSkipsStoredPhone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(101)

	f.expectBookingEntry(userID, &models.User{TelegramID: userID, Phone: "+79990000000"})
	_, err := f.engine.Begin(ctx, userID, FormBooking, Values{KeyServiceID: consultation.ID, KeyServiceName: consultation.Name})
	require.NoError(t, err)
	assert.Equal(t, "booking:name", f.step(t, userID), "service chosen from the inline list")

	f.send(t, userID, "Иван")
	assert.Equal(t, "booking:date", f.step(t, userID))
}

func TestBookingFormCapGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bookings.On("CheckCanBook", mock.Anything, int64(1)).Return(domain.ErrBookingLimit).Once()
	_, err := f.engine.Begin(ctx, 1, FormBooking, nil)
	assert.ErrorIs(t, err, domain.ErrBookingLimit)
	assert.Equal(t, "", f.step(t, 1))

	f.expectBookingEntry(2, nil)
	_, err = f.engine.Begin(ctx, 2, FormBooking, nil)
	require.NoError(t, err)
	assert.Equal(t, "booking:service", f.step(t, 2))
}

func TestBookingFormNoServices(t *testing.T) {
	f := newFixture(t)
	f.bookings.On("CheckCanBook", mock.Anything, int64(3)).Return(nil).Once()
	f.catalog.On("ActiveServices", mock.Anything).Return([]*models.Service{}, nil).Once()

	_, err := f.engine.Begin(context.Background(), 3, FormBooking, nil)
	assert.ErrorIs(t, err, ErrNoServices)
	assert.Equal(t, "", f.step(t, 3))
}

func TestBookingFormUnknownService(t *testing.T) {
	f := newFixture(t)
	f.expectBookingEntry(4, nil)
	_, err := f.engine.Begin(context.Background(), 4, FormBooking, nil)
	require.NoError(t, err)

	f.catalog.On("FindActiveByName", mock.Anything, "Массаж").Return(nil, domain.ErrNotFound).Once()
	reply := f.send(t, 4, "Массаж")
	assert.Contains(t, reply.Text, "Выберите услугу из списка")
	assert.Equal(t, []string{"Консультация"}, reply.Choices)
	assert.Equal(t, "booking:service", f.step(t, 4))
}

// seedAtTime puts the user right before the last booking field.
func (f *fixture) seedAtTime(t *testing.T, userID int64) {
	t.Helper()
	require.NoError(t, f.states.SetUserState(context.Background(), userID, "booking:time", map[string]interface{}{
		KeyServiceID: int64(5), KeyServiceName: "Консультация", KeyName: "Анна",
		KeyPhone: "+79991234567", KeyDate: "15 Марта",
	}))
}

func TestBookingNotificationFailureClearsState(t *testing.T) {
	f := newFixture(t)
	const userID = int64(7)
	f.seedAtTime(t, userID)

	f.bookings.On("CreateBooking", mock.Anything, mock.Anything).Return(nil).Once()
	f.users.On("GetUser", mock.Anything, userID).Return(&models.User{TelegramID: userID, Phone: "+79991234567"}, nil).Once()
	f.notifier.On("NotifyBooking", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("telegram down")).Once()

	_, handled, err := f.engine.Handle(context.Background(), Input{UserID: userID, Text: "10:00"})
	assert.True(t, handled)
	assert.ErrorIs(t, err, ErrCommitted)
	assert.Equal(t, "", f.step(t, userID), "committed booking must not be resubmitted")
}

func TestBookingStoreFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	const userID = int64(8)
	f.seedAtTime(t, userID)

	f.bookings.On("CreateBooking", mock.Anything, mock.Anything).Return(errors.New("database is locked")).Once()
	_, handled, err := f.engine.Handle(context.Background(), Input{UserID: userID, Text: "10:00"})
	assert.True(t, handled)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommitted)
	assert.Equal(t, "booking:time", f.step(t, userID), "user can resend the last answer")
}

func TestBookingLimitAtCompletionAborts(t *testing.T) {
	f := newFixture(t)
	const userID = int64(9)
	f.seedAtTime(t, userID)

	f.bookings.On("CreateBooking", mock.Anything, mock.Anything).Return(domain.ErrBookingLimit).Once()
	_, _, err := f.engine.Handle(context.Background(), Input{UserID: userID, Text: "10:00"})
	assert.ErrorIs(t, err, domain.ErrBookingLimit)
	assert.ErrorIs(t, err, ErrAbort)
	assert.Equal(t, "", f.step(t, userID))
}

func TestFormSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	const userID = int64(10)
	f.expectBookingEntry(userID, nil)
	_, err := f.engine.Begin(context.Background(), userID, FormBooking, Values{KeyServiceID: consultation.ID, KeyServiceName: consultation.Name})
	require.NoError(t, err)

	f.engine = f.newEngine()
	f.send(t, userID, "Мария")
	assert.Equal(t, "booking:phone", f.step(t, userID))
}

func TestRegistrationForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(20)

	reply, err := f.engine.Begin(ctx, userID, FormRegistration, nil)
	require.NoError(t, err)
	assert.True(t, reply.RequestContact)

	user := &models.User{TelegramID: userID, Phone: "+79991234567"}
	f.users.On("UpdatePhone", mock.Anything, userID, "+79991234567").Return(nil).Once()
	f.users.On("GetUser", mock.Anything, userID).Return(user, nil).Once()
	f.notifier.On("NotifyRegistration", mock.Anything, user).Return(errors.New("admin blocked bot")).Once()

	reply, handled, err := f.engine.Handle(ctx, Input{UserID: userID, Contact: &Contact{Phone: "79991234567", FirstName: "Анна"}})
	require.NoError(t, err, "registration notification failures are only logged")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "+79991234567")
	assert.Equal(t, "", f.step(t, userID))
	assert.Zero(t, reply.Resume)
	f.users.AssertExpectations(t)
}

func TestRegistrationResumesCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(21)

	_, err := f.engine.Begin(ctx, userID, FormRegistration, Values{KeyFunnelID: int64(5)})
	require.NoError(t, err)

	f.users.On("UpdatePhone", mock.Anything, userID, "+79991234567").Return(nil).Once()
	f.users.On("GetUser", mock.Anything, userID).Return(nil, errors.New("db down")).Once()

	reply := f.send(t, userID, "8 999 123 45 67")
	assert.Equal(t, int64(5), reply.Resume)
	f.notifier.AssertNotCalled(t, "NotifyRegistration", mock.Anything, mock.Anything)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(30)

	cancelled, err := f.engine.Cancel(ctx, userID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	f.expectBookingEntry(userID, nil)
	_, err = f.engine.Begin(ctx, userID, FormBooking, Values{KeyServiceID: consultation.ID, KeyServiceName: consultation.Name})
	require.NoError(t, err)

	name, active, err := f.engine.Active(ctx, userID)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, FormBooking, name)

	cancelled, err = f.engine.Cancel(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	_, handled, err := f.engine.Handle(ctx, Input{UserID: userID, Text: "Анна"})
	require.NoError(t, err)
	assert.False(t, handled, "next message is a fresh command")
}

func TestHandleBrokenState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.SetUserState(ctx, 40, "booking:date", map[string]interface{}{KeyServiceID: int64(5)}))
	_, handled, err := f.engine.Handle(ctx, Input{UserID: 40, Text: "15.03"})
	assert.True(t, handled)
	assert.ErrorIs(t, err, ErrBrokenState)
	assert.Equal(t, "", f.step(t, 40))

	require.NoError(t, f.states.SetUserState(ctx, 41, "booking:nope", nil))
	_, handled, err = f.engine.Handle(ctx, Input{UserID: 41, Text: "x"})
	assert.True(t, handled)
	assert.ErrorIs(t, err, ErrBrokenState)

	require.NoError(t, f.states.SetUserState(ctx, 42, "legacy_step", nil))
	_, handled, err = f.engine.Handle(ctx, Input{UserID: 42, Text: "x"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestBeginUnknownForm(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Begin(context.Background(), 1, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownForm)
}
