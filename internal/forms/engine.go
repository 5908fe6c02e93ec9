// Package forms ведёт пошаговые диалоги: запись на услугу, регистрацию телефона,
// создание курсов и шагов, рассылку. Ожидаемое поле хранится в StateManager как
// "<форма>:<поле>", собранные значения - в TempData, поэтому диалог переживает перезапуск.
package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kabinet/internal/domain"

	"github.com/rs/zerolog"
)

const (
	CancelledText       = "❌ Операция отменена."
	NothingToCancelText = "Нет активной операции для отмены."
)

var (
	// ErrUnknownForm - форма с таким именем не зарегистрирована.
	ErrUnknownForm = errors.New("unknown form")
	// ErrBrokenState - в сохранённом состоянии нет ключей, без которых поле не работает.
	ErrBrokenState = errors.New("form state is missing required values")
	// ErrCommitted помечает ошибку, случившуюся после записи в базу.
	// Состояние в этом случае очищается, повтор ввода создал бы дубль.
	ErrCommitted = errors.New("form result already committed")
	// ErrAbort - форму нельзя завершить, начинать нужно заново.
	ErrAbort = errors.New("form aborted")
)

// ValidationError - ввод не прошёл проверку. Поле остаётся прежним, пользователь видит Message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Contact - контакт, которым пользователь поделился кнопкой.
type Contact struct {
	Phone     string
	FirstName string
	LastName  string
}

// Media - вложение с подписью.
type Media struct {
	Kind    string
	FileID  string
	Caption string
}

const (
	MediaVideo     = "video"
	MediaAudio     = "audio"
	MediaVideoNote = "video_note"
)

// Input - нормализованное входящее сообщение.
type Input struct {
	UserID  int64
	Text    string
	Contact *Contact
	Media   *Media
}

// Reply - что показать пользователю. Транспорт сам решает, как это отрисовать.
type Reply struct {
	Text           string
	Choices        []string
	RequestContact bool
	RemoveKeyboard bool
	// Menu - после ответа вернуть пользователя в главное меню.
	Menu bool
	// Resume - курс, который нужно открыть после регистрации.
	Resume int64
}

// Field - одно поле формы.
type Field struct {
	Name string
	// Requires - ключи, которые должны быть собраны до этого поля.
	Requires []string
	Prompt   func(ctx context.Context, v Values) (Reply, error)
	Parse    func(ctx context.Context, in Input, v Values) error
	// Skip - поле уже заполнено или не нужно.
	Skip func(v Values) bool
	// Next - явный переход. Пустая строка означает следующее по порядку поле.
	Next func(v Values) string
}

// Form - именованная последовательность полей.
type Form struct {
	Name   string
	Fields []Field
	// Prepare проверяет предусловия до первого поля. Ошибка отменяет вход в форму.
	Prepare  func(ctx context.Context, userID int64, v Values) error
	Complete func(ctx context.Context, userID int64, v Values) (Reply, error)
	// ClearOnError - при ошибке Complete начинать форму заново.
	ClearOnError bool
}

func (f *Form) index(name string) int {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

type Engine struct {
	states domain.StateManager
	forms  map[string]*Form
	logger *zerolog.Logger
}

func NewEngine(states domain.StateManager, logger *zerolog.Logger, forms ...*Form) *Engine {
	e := &Engine{
		states: states,
		forms:  make(map[string]*Form, len(forms)),
		logger: logger,
	}
	for _, f := range forms {
		e.Register(f)
	}
	return e
}

func (e *Engine) Register(f *Form) {
	e.forms[f.Name] = f
}

func stepKey(form, field string) string {
	return form + ":" + field
}

func splitStep(step string) (form, field string, ok bool) {
	return strings.Cut(step, ":")
}

// Begin starts the named form. seed may pre-fill values, fields whose Skip reports
// true are passed over.
func (e *Engine) Begin(ctx context.Context, userID int64, name string, seed Values) (Reply, error) {
	form, ok := e.forms[name]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownForm, name)
	}

	v := make(Values, len(seed))
	for k, val := range seed {
		v[k] = val
	}
	if form.Prepare != nil {
		if err := form.Prepare(ctx, userID, v); err != nil {
			return Reply{}, err
		}
	}

	e.logger.Debug().Int64("user_id", userID).Str("form", name).Msg("Form started")
	return e.enter(ctx, userID, form, 0, v)
}

// enter shows the first non-skipped field starting at idx, or completes the form.
func (e *Engine) enter(ctx context.Context, userID int64, form *Form, idx int, v Values) (Reply, error) {
	for ; idx < len(form.Fields); idx++ {
		field := form.Fields[idx]
		if field.Skip != nil && field.Skip(v) {
			continue
		}
		if missing := v.missing(field.Requires); len(missing) > 0 {
			return Reply{}, fmt.Errorf("%w: %s needs %v", ErrBrokenState, stepKey(form.Name, field.Name), missing)
		}
		reply, err := field.Prompt(ctx, v)
		if err != nil {
			return Reply{}, err
		}
		if err := e.states.SetUserState(ctx, userID, stepKey(form.Name, field.Name), v); err != nil {
			return Reply{}, err
		}
		return reply, nil
	}
	return e.complete(ctx, userID, form, v)
}

func (e *Engine) complete(ctx context.Context, userID int64, form *Form, v Values) (Reply, error) {
	reply, err := form.Complete(ctx, userID, v)
	if err != nil {
		if form.ClearOnError || errors.Is(err, ErrCommitted) || errors.Is(err, ErrAbort) {
			e.clear(ctx, userID)
		}
		e.logger.Error().Err(err).Int64("user_id", userID).Str("form", form.Name).Msg("Form completion failed")
		return Reply{}, err
	}
	e.clear(ctx, userID)
	e.logger.Info().Int64("user_id", userID).Str("form", form.Name).Msg("Form completed")
	return reply, nil
}

func (e *Engine) clear(ctx context.Context, userID int64) {
	if err := e.states.ClearUserState(ctx, userID); err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to clear form state")
	}
}

// Handle feeds input to the waiting field. handled is false when no form is active,
// the caller then treats the message as a regular command.
func (e *Engine) Handle(ctx context.Context, in Input) (reply Reply, handled bool, err error) {
	state, err := e.states.GetUserState(ctx, in.UserID)
	if err != nil {
		return Reply{}, false, err
	}
	if state == nil {
		return Reply{}, false, nil
	}

	formName, fieldName, ok := splitStep(state.CurrentStep)
	form := e.forms[formName]
	if !ok || form == nil {
		return Reply{}, false, nil
	}
	idx := form.index(fieldName)
	if idx < 0 {
		e.clear(ctx, in.UserID)
		return Reply{}, true, fmt.Errorf("%w: unknown field %s", ErrBrokenState, state.CurrentStep)
	}

	field := form.Fields[idx]
	v := Values(state.TempData)
	if v == nil {
		v = make(Values)
	}
	if missing := v.missing(field.Requires); len(missing) > 0 {
		e.clear(ctx, in.UserID)
		return Reply{}, true, fmt.Errorf("%w: %s needs %v", ErrBrokenState, state.CurrentStep, missing)
	}

	if err := field.Parse(ctx, in, v); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return e.reprompt(ctx, field, v, verr)
		}
		return Reply{}, true, err
	}

	next := idx + 1
	if field.Next != nil {
		if name := field.Next(v); name != "" {
			if next = form.index(name); next < 0 {
				return Reply{}, true, fmt.Errorf("%w: unknown field %s", ErrBrokenState, name)
			}
		}
	}
	reply, err = e.enter(ctx, in.UserID, form, next, v)
	return reply, true, err
}

func (e *Engine) reprompt(ctx context.Context, field Field, v Values, verr *ValidationError) (Reply, bool, error) {
	reply, err := field.Prompt(ctx, v)
	if err != nil {
		return Reply{}, true, err
	}
	reply.Text = verr.Message + "\n\n" + reply.Text
	return reply, true, nil
}

// Cancel clears the active form. It reports false when nothing was active.
func (e *Engine) Cancel(ctx context.Context, userID int64) (bool, error) {
	name, active, err := e.Active(ctx, userID)
	if err != nil || !active {
		return false, err
	}
	if err := e.states.ClearUserState(ctx, userID); err != nil {
		return false, err
	}
	e.logger.Info().Int64("user_id", userID).Str("form", name).Msg("Form cancelled")
	return true, nil
}

// Active returns the name of the form the user is filling in.
func (e *Engine) Active(ctx context.Context, userID int64) (string, bool, error) {
	state, err := e.states.GetUserState(ctx, userID)
	if err != nil || state == nil {
		return "", false, err
	}
	name, _, ok := splitStep(state.CurrentStep)
	if !ok {
		return "", false, nil
	}
	if _, known := e.forms[name]; !known {
		return "", false, nil
	}
	return name, true, nil
}
