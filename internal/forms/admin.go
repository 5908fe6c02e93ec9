package forms

import (
	"context"
	"fmt"
	"html"
	"strings"

	"kabinet/internal/domain"
	"kabinet/internal/models"
)

const (
	FormFunnel      = "funnel"
	FormFunnelStep  = "funnel_step"
	FormBroadcast   = "broadcast"
	FormDefaultText = "default_text"
)

const (
	ChoiceEditCaption = "✏️ Изменить подпись"
	ChoiceKeepCaption = "✅ Оставить"
	ChoiceSend        = "✅ Отправить"
	ChoiceEdit        = "✏️ Изменить"
	ChoiceAbort       = "❌ Не отправлять"
)

// AdminDeps - сервисы для форм администратора.
type AdminDeps struct {
	Funnels    domain.FunnelAuthor
	Broadcasts domain.BroadcastService
	Launcher   domain.BroadcastLauncher
}

func requireText(field, msg string, in Input) (string, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", invalid(field, msg)
	}
	return text, nil
}

// NewFunnelForm - создание курса: название и описание.
func NewFunnelForm(d AdminDeps) *Form {
	return &Form{
		Name:         FormFunnel,
		ClearOnError: true,
		Fields: []Field{
			{
				Name: "name",
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "📚 <b>Новый курс</b>\n\nВведите название курса:\n\n<i>Для отмены введите /cancel</i>"}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					name, err := requireText(KeyFunnelName, "❌ Название не может быть пустым.", in)
					if err != nil {
						return err
					}
					v[KeyFunnelName] = name
					return nil
				},
			},
			{
				Name:     "description",
				Requires: []string{KeyFunnelName},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "📝 Введите описание курса (или «-», чтобы оставить пустым):"}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					desc, err := requireText(KeyDescription, "❌ Описание не может быть пустым. Отправьте «-», чтобы пропустить.", in)
					if err != nil {
						return err
					}
					if desc == "-" {
						desc = ""
					}
					v[KeyDescription] = desc
					return nil
				},
			},
		},
		Complete: func(ctx context.Context, _ int64, v Values) (Reply, error) {
			draft := funnelDraft(v)
			funnel, err := d.Funnels.CreateFunnel(ctx, draft.Name, draft.Description)
			if err != nil {
				return Reply{}, err
			}
			return Reply{
				Text: fmt.Sprintf("✅ Курс <b>%s</b> создан (ID %d).\n\nДобавьте в него этапы через управление курсами.",
					html.EscapeString(funnel.Name), funnel.ID),
				Menu: true,
			}, nil
		},
	}
}

// NewFunnelStepForm - добавление этапа в курс. Курс передаётся в seed по KeyFunnelID.
func NewFunnelStepForm(d AdminDeps) *Form {
	return &Form{
		Name: FormFunnelStep,
		Prepare: func(ctx context.Context, _ int64, v Values) error {
			if !v.Has(KeyFunnelID) {
				return fmt.Errorf("%w: funnel not selected", ErrBrokenState)
			}
			funnel, err := d.Funnels.GetFunnel(ctx, v.Int64(KeyFunnelID))
			if err != nil {
				return err
			}
			v[KeyFunnelName] = funnel.Name
			return nil
		},
		Fields: []Field{
			{
				Name:     "title",
				Requires: []string{KeyFunnelID},
				Prompt: func(_ context.Context, v Values) (Reply, error) {
					return Reply{Text: fmt.Sprintf("➕ <b>Новый этап курса «%s»</b>\n\nВведите название этапа:\n\n<i>Для отмены введите /cancel</i>",
						html.EscapeString(v.String(KeyFunnelName)))}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					title, err := requireText(KeyTitle, "❌ Название этапа не может быть пустым.", in)
					if err != nil {
						return err
					}
					v[KeyTitle] = title
					return nil
				},
			},
			{
				Name:     "content",
				Requires: []string{KeyFunnelID, KeyTitle},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "📄 Отправьте содержимое этапа: текст, видео или аудио с подписью."}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					if in.Media != nil {
						switch in.Media.Kind {
						case MediaVideo, MediaAudio:
							v[KeyContentType] = in.Media.Kind
							v[KeyFileID] = in.Media.FileID
							v[KeyContent] = mediaCaption(in.Media)
							return nil
						}
						return invalid(KeyContent, "❌ Поддерживаются только текст, видео и аудио.")
					}
					text, err := requireText(KeyContent, "❌ Содержимое не может быть пустым.", in)
					if err != nil {
						return err
					}
					v[KeyContentType] = string(models.ContentText)
					v[KeyContent] = text
					return nil
				},
				Next: func(v Values) string {
					if v.String(KeyContentType) == string(models.ContentText) {
						return "access"
					}
					return "caption_choice"
				},
			},
			{
				Name:     "caption_choice",
				Requires: []string{KeyFunnelID, KeyTitle, KeyContentType},
				Prompt: func(_ context.Context, v Values) (Reply, error) {
					return Reply{
						Text:    fmt.Sprintf("Подпись к файлу: <i>%s</i>\n\nИзменить подпись?", html.EscapeString(v.String(KeyContent))),
						Choices: []string{ChoiceEditCaption, ChoiceKeepCaption},
					}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					switch strings.TrimSpace(in.Text) {
					case ChoiceEditCaption:
						v[KeyEditCaption] = true
					case ChoiceKeepCaption:
						v[KeyEditCaption] = false
					default:
						return invalid(KeyEditCaption, "❌ Выберите вариант на клавиатуре.")
					}
					return nil
				},
				Next: func(v Values) string {
					if v.Bool(KeyEditCaption) {
						return "caption"
					}
					return "access"
				},
			},
			{
				Name:     "caption",
				Requires: []string{KeyFunnelID, KeyTitle, KeyContentType},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "✏️ Введите новую подпись:", RemoveKeyboard: true}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					caption, err := requireText(KeyContent, "❌ Подпись не может быть пустой.", in)
					if err != nil {
						return err
					}
					v[KeyContent] = caption
					return nil
				},
			},
			{
				Name:     "access",
				Requires: []string{KeyFunnelID, KeyTitle, KeyContentType, KeyContent},
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{
						Text:    "💰 Этот этап бесплатный или платный?",
						Choices: []string{models.AccessTokenFree, models.AccessTokenPaid},
					}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					access, err := ParseAccess(in.Text)
					if err != nil {
						return err
					}
					v[KeyIsFree] = access.IsFree()
					return nil
				},
			},
		},
		Complete: func(ctx context.Context, _ int64, v Values) (Reply, error) {
			draft := stepDraft(v)
			step := draft.Step()
			if err := d.Funnels.AddStep(ctx, step); err != nil {
				return Reply{}, err
			}
			return Reply{
				Text: fmt.Sprintf("✅ <b>Этап добавлен</b>\n\n📚 <b>Курс:</b> %s\n🔢 <b>Порядок:</b> %d\n📝 <b>Название:</b> %s\n💰 <b>Тип:</b> %s",
					html.EscapeString(v.String(KeyFunnelName)), step.Order, html.EscapeString(step.Title), draft.Access),
				RemoveKeyboard: true,
				Menu:           true,
			}, nil
		},
	}
}

// NewBroadcastForm - рассылка. Вид (KeyKind) и, для текста по умолчанию, сам текст передаются в seed.
func NewBroadcastForm(d AdminDeps) *Form {
	return &Form{
		Name: FormBroadcast,
		Prepare: func(_ context.Context, _ int64, v Values) error {
			switch models.BroadcastKind(v.String(KeyKind)) {
			case models.BroadcastText, models.BroadcastVideo, models.BroadcastVideoNote:
				return nil
			}
			return fmt.Errorf("%w: unknown broadcast kind %q", ErrBrokenState, v.String(KeyKind))
		},
		Fields: []Field{
			{
				Name:     "content",
				Requires: []string{KeyKind},
				Skip:     func(v Values) bool { return v.Has(KeyText) || v.Has(KeyFileID) },
				Prompt: func(_ context.Context, v Values) (Reply, error) {
					switch models.BroadcastKind(v.String(KeyKind)) {
					case models.BroadcastVideo:
						return Reply{Text: "🎬 Отправьте видео для рассылки или отмените /cancel"}, nil
					case models.BroadcastVideoNote:
						return Reply{Text: "⭕ Отправьте кружок для рассылки или отмените /cancel"}, nil
					}
					return Reply{Text: "✏️ Введите текст для рассылки:\n\nДля отмены введите /cancel", RemoveKeyboard: true}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					kind := models.BroadcastKind(v.String(KeyKind))
					switch kind {
					case models.BroadcastVideo, models.BroadcastVideoNote:
						if in.Media == nil || in.Media.Kind != string(kind) {
							return invalid(KeyFileID, "❌ Это не то вложение, которое ожидалось.")
						}
						v[KeyFileID] = in.Media.FileID
						v[KeyCaption] = strings.TrimSpace(in.Media.Caption)
						return nil
					}
					text, err := requireText(KeyText, "❌ Текст рассылки не может быть пустым.", in)
					if err != nil {
						return err
					}
					v[KeyText] = text
					return nil
				},
			},
			{
				Name:     "caption",
				Requires: []string{KeyKind, KeyFileID},
				Skip:     func(v Values) bool { return !v.Bool(KeyEditCaption) },
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "✏️ Введите новый текст подписи к видео:", RemoveKeyboard: true}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					caption, err := requireText(KeyCaption, "❌ Подпись не может быть пустой.", in)
					if err != nil {
						return err
					}
					v[KeyCaption] = caption
					v[KeyEditCaption] = false
					return nil
				},
			},
			{
				Name:     "confirm",
				Requires: []string{KeyKind},
				Prompt: func(_ context.Context, v Values) (Reply, error) {
					draft := broadcastDraft(v)
					var preview string
					switch draft.Kind {
					case models.BroadcastVideo:
						caption := draft.Caption
						if caption == "" {
							caption = "Без подписи"
						}
						preview = "видео\n\n<b>Подпись:</b> " + html.EscapeString(caption)
					case models.BroadcastVideoNote:
						preview = "кружок"
					default:
						preview = "этот текст\n\n<b>Текст:</b> " + html.EscapeString(draft.Text)
					}
					choices := []string{ChoiceSend, ChoiceEdit, ChoiceAbort}
					if draft.Kind == models.BroadcastVideoNote {
						choices = []string{ChoiceSend, ChoiceAbort}
					}
					return Reply{
						Text:    "Вы уверены, что хотите отправить всем пользователям " + preview,
						Choices: choices,
					}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					switch strings.TrimSpace(in.Text) {
					case ChoiceSend:
						v[KeyConfirm] = true
					case ChoiceAbort:
						v[KeyConfirm] = false
					case ChoiceEdit:
						if models.BroadcastKind(v.String(KeyKind)) == models.BroadcastVideo {
							v[KeyEditCaption] = true
						} else {
							delete(v, KeyText)
							delete(v, KeyFileID)
						}
					default:
						return invalid(KeyConfirm, "❌ Выберите вариант на клавиатуре.")
					}
					return nil
				},
				Next: func(v Values) string {
					if v.Has(KeyConfirm) {
						return ""
					}
					if v.Bool(KeyEditCaption) {
						return "caption"
					}
					return "content"
				},
			},
		},
		Complete: func(_ context.Context, adminID int64, v Values) (Reply, error) {
			if !v.Bool(KeyConfirm) {
				return Reply{Text: "Рассылка отменена.", RemoveKeyboard: true, Menu: true}, nil
			}
			d.Launcher.Launch(adminID, broadcastDraft(v).Content())
			return Reply{Text: "📤 Рассылка запущена. Результат придёт отдельным сообщением.", RemoveKeyboard: true, Menu: true}, nil
		},
	}
}

// NewDefaultTextForm - смена текста рассылки по умолчанию.
func NewDefaultTextForm(d AdminDeps) *Form {
	return &Form{
		Name: FormDefaultText,
		Fields: []Field{
			{
				Name: "text",
				Prompt: func(_ context.Context, _ Values) (Reply, error) {
					return Reply{Text: "⚙️ Введите новый стандартный текст для рассылки:\n\nДля отмены введите /cancel"}, nil
				},
				Parse: func(_ context.Context, in Input, v Values) error {
					text, err := requireText(KeyText, "❌ Текст не может быть пустым.", in)
					if err != nil {
						return err
					}
					v[KeyText] = text
					return nil
				},
			},
		},
		Complete: func(ctx context.Context, _ int64, v Values) (Reply, error) {
			text := v.String(KeyText)
			if err := d.Broadcasts.SetDefaultText(ctx, text); err != nil {
				return Reply{}, err
			}
			return Reply{
				Text: fmt.Sprintf("✅ Стандартный текст обновлён!\n\n📝 Новый текст: <i>\"%s\"</i>", html.EscapeString(text)),
				Menu: true,
			}, nil
		},
	}
}

// mediaCaption - подпись файла этапа, без подписи подставляется название по типу.
func mediaCaption(m *Media) string {
	if caption := strings.TrimSpace(m.Caption); caption != "" {
		return caption
	}
	if m.Kind == MediaAudio {
		return "Аудио урок"
	}
	return "Видео урок"
}
