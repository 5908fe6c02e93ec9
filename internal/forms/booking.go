package forms

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"kabinet/internal/domain"

	"github.com/rs/zerolog"
)

const (
	FormBooking      = "booking"
	FormRegistration = "registration"
)

// ErrNoServices - нет ни одной активной услуги, записываться некуда.
var ErrNoServices = errors.New("no active services")

// UserDeps - сервисы, которые нужны пользовательским формам.
type UserDeps struct {
	Users    domain.UserService
	Catalog  domain.CatalogService
	Bookings domain.BookingService
	Notifier domain.Notifier
	Now      func() time.Time
}

func (d UserDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func phonePrompt(intro string) Reply {
	return Reply{
		Text: intro + "\n\n📞 Введите ваш номер телефона:\n" + phoneFormatHint +
			"\n\n<i>Или поделитесь контактом, нажав на кнопку ниже</i>\n<i>Для отмены введите /cancel</i>",
		RequestContact: true,
	}
}

// parsePhone принимает контакт или текст.
func parsePhone(in Input, v Values) error {
	raw := in.Text
	if in.Contact != nil {
		raw = in.Contact.Phone
	}
	phone, err := NormalizePhone(raw)
	if err != nil {
		return err
	}
	v[KeyPhone] = phone
	return nil
}

// NewBookingForm - запись на услугу: услуга, имя, телефон, дата, время.
func NewBookingForm(d UserDeps) *Form {
	return &Form{
		Name: FormBooking,
		Prepare: func(ctx context.Context, userID int64, v Values) error {
			if err := d.Bookings.CheckCanBook(ctx, userID); err != nil {
				return err
			}
			services, err := d.Catalog.ActiveServices(ctx)
			if err != nil {
				return err
			}
			if len(services) == 0 {
				return ErrNoServices
			}
			user, err := d.Users.GetUser(ctx, userID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if user.HasPhone() {
				v[KeyPhone] = user.Phone
			}
			return nil
		},
		Fields: []Field{
			{
				Name: "service",
				Skip: func(v Values) bool { return v.Has(KeyServiceID) && v.Has(KeyServiceName) },
				Prompt: func(ctx context.Context, _ Values) (Reply, error) {
					services, err := d.Catalog.ActiveServices(ctx)
					if err != nil {
						return Reply{}, err
					}
					choices := make([]string, 0, len(services))
					for _, s := range services {
						choices = append(choices, s.Name)
					}
					return Reply{Text: "📅 <b>Запись на консультацию</b>\n\nВыберите услугу:", Choices: choices}, nil
				},
				Parse: func(ctx context.Context, in Input, v Values) error {
					service, err := d.Catalog.FindActiveByName(ctx, in.Text)
					if errors.Is(err, domain.ErrNotFound) {
						return invalid("service", "❌ Выберите услугу из списка.")
					}
					if err != nil {
						return err
					}
					v[KeyServiceID] = service.ID
					v[KeyServiceName] = service.Name
					return nil
				},
			},
			{
				Name:     "name",
				Requires: []string{KeyServiceID},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "👤 Как к вам обращаться? Введите ваше имя:", RemoveKeyboard: true}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					name, err := NormalizeName(in.Text)
					if err != nil {
						return err
					}
					v[KeyName] = name
					return nil
				},
			},
			{
				Name:     "phone",
				Requires: []string{KeyServiceID, KeyName},
				Skip:     func(v Values) bool { return v.String(KeyPhone) != "" },
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return phonePrompt("Нам понадобится ваш телефон, чтобы связаться с вами."), nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					return parsePhone(in, v)
				},
			},
			{
				Name:     "date",
				Requires: []string{KeyServiceID, KeyName, KeyPhone},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "📆 Введите желаемую дату в формате ДД.ММ:", RemoveKeyboard: true}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					date, err := ParseDate(in.Text, d.now())
					if err != nil {
						return err
					}
					v[KeyDate] = date
					return nil
				},
			},
			{
				Name:     "time",
				Requires: []string{KeyServiceID, KeyName, KeyPhone, KeyDate},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "🕐 Введите желаемое время в формате ЧЧ:ММ:"}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					t, err := ParseTime(in.Text)
					if err != nil {
						return err
					}
					v[KeyTime] = t
					return nil
				},
			},
		},
		Complete: func(ctx context.Context, userID int64, v Values) (Reply, error) {
			draft := bookingDraft(v)
			booking := draft.Booking(userID)
			if err := d.Bookings.CreateBooking(ctx, booking); err != nil {
				if errors.Is(err, domain.ErrBookingLimit) || errors.Is(err, domain.ErrServiceInactive) {
					return Reply{}, errors.Join(ErrAbort, err)
				}
				return Reply{}, err
			}

			user, err := d.Users.GetUser(ctx, userID)
			if err != nil {
				return Reply{}, errors.Join(ErrCommitted, err)
			}
			if !user.HasPhone() {
				if err := d.Users.UpdatePhone(ctx, userID, draft.Phone); err != nil {
					return Reply{}, errors.Join(ErrCommitted, err)
				}
				user.Phone = draft.Phone
			}
			if err := d.Notifier.NotifyBooking(ctx, booking, user); err != nil {
				return Reply{}, errors.Join(ErrCommitted, err)
			}

			return Reply{
				Text: fmt.Sprintf("✅ <b>Заявка принята!</b>\n\n"+
					"💼 <b>Услуга:</b> %s\n👤 <b>Имя:</b> %s\n📞 <b>Телефон:</b> %s\n📅 <b>Дата:</b> %s\n🕐 <b>Время:</b> %s\n\n"+
					"Психолог свяжется с вами для подтверждения.",
					html.EscapeString(draft.ServiceName), html.EscapeString(draft.Name),
					draft.Phone, draft.Date, draft.Time),
				RemoveKeyboard: true,
				Menu:           true,
			}, nil
		},
	}
}

// NewRegistrationForm - регистрация или смена телефона.
func NewRegistrationForm(d UserDeps, logger *zerolog.Logger) *Form {
	return &Form{
		Name: FormRegistration,
		Fields: []Field{
			{
				Name: "phone",
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return phonePrompt("<b>Регистрация</b>\n\nПосле регистрации вы сможете проходить курсы и записываться на услуги."), nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					return parsePhone(in, v)
				},
			},
		},
		Complete: func(ctx context.Context, userID int64, v Values) (Reply, error) {
			phone := v.String(KeyPhone)
			if err := d.Users.UpdatePhone(ctx, userID, phone); err != nil {
				return Reply{}, err
			}
			if user, err := d.Users.GetUser(ctx, userID); err == nil {
				if err := d.Notifier.NotifyRegistration(ctx, user); err != nil {
					logger.Warn().Err(err).Int64("user_id", userID).Msg("Registration notification failed")
				}
			}
			return Reply{
				Text:           fmt.Sprintf("✅ Номер телефона сохранён: <b>%s</b>", phone),
				RemoveKeyboard: true,
				Menu:           true,
				Resume:         v.Int64(KeyFunnelID),
			}, nil
		},
	}
}
