package bot

import (
	"context"
	"errors"

	"kabinet/internal/forms"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) sendHTML(chatID int64, text string, markup interface{}) {
	if _, err := b.tgService.SendHTML(chatID, text, markup); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// editOrSend правит сообщение с inline-клавиатурой или шлёт новое, если править нечего.
func (b *Bot) editOrSend(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if messageID != 0 {
		if _, err := b.tgService.EditMessage(chatID, messageID, text, &keyboard); err == nil {
			return
		}
	}
	b.sendHTML(chatID, text, keyboard)
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Msg("Request failed")
	b.countError(errorKind(err))
	b.sendHTML(chatID, b.getUserErrorMessage(err), nil)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, forms.ErrCommitted):
		return "committed"
	case errors.Is(err, forms.ErrAbort):
		return "aborted"
	default:
		return "internal"
	}
}

// inputFromMessage переводит сообщение Telegram во вход формы.
func inputFromMessage(msg *tgbotapi.Message) forms.Input {
	in := forms.Input{UserID: msg.From.ID, Text: msg.Text}
	if msg.Contact != nil {
		in.Contact = &forms.Contact{
			Phone:     msg.Contact.PhoneNumber,
			FirstName: msg.Contact.FirstName,
			LastName:  msg.Contact.LastName,
		}
	}
	switch {
	case msg.Video != nil:
		in.Media = &forms.Media{Kind: forms.MediaVideo, FileID: msg.Video.FileID, Caption: msg.Caption}
	case msg.Audio != nil:
		in.Media = &forms.Media{Kind: forms.MediaAudio, FileID: msg.Audio.FileID, Caption: msg.Caption}
	case msg.VideoNote != nil:
		in.Media = &forms.Media{Kind: forms.MediaVideoNote, FileID: msg.VideoNote.FileID}
	}
	return in
}

// sendReply отрисовывает ответ формы.
func (b *Bot) sendReply(ctx context.Context, chatID, userID int64, reply forms.Reply) {
	var markup interface{}
	switch {
	case reply.RequestContact:
		markup = contactKeyboard()
	case len(reply.Choices) > 0:
		markup = choicesKeyboard(reply.Choices)
	case reply.Menu:
		markup = b.mainMenu(userID)
	case reply.RemoveKeyboard:
		markup = tgbotapi.NewRemoveKeyboard(true)
	}
	if reply.Text != "" {
		b.sendHTML(chatID, reply.Text, markup)
	}
	if reply.Resume != 0 {
		b.openCourse(ctx, chatID, userID, reply.Resume)
	}
}

// beginForm запускает форму и показывает первый вопрос.
func (b *Bot) beginForm(ctx context.Context, chatID, userID int64, name string, seed forms.Values) {
	reply, err := b.forms.Begin(ctx, userID, name, seed)
	if err != nil {
		b.countForm(name, "rejected")
		b.replyFormError(ctx, chatID, userID, err)
		return
	}
	b.countForm(name, "started")
	b.sendReply(ctx, chatID, userID, reply)
}

// continueForm передаёт сообщение активной форме. false - формы нет.
func (b *Bot) continueForm(ctx context.Context, msg *tgbotapi.Message) bool {
	userID := msg.From.ID
	name, _, _ := b.forms.Active(ctx, userID)

	reply, handled, err := b.forms.Handle(ctx, inputFromMessage(msg))
	if err != nil {
		b.countForm(name, "failed")
		b.replyFormError(ctx, msg.Chat.ID, userID, err)
		return true
	}
	if !handled {
		return false
	}
	if reply.Menu {
		b.countForm(name, "completed")
	}
	b.sendReply(ctx, msg.Chat.ID, userID, reply)
	return true
}

func (b *Bot) replyFormError(ctx context.Context, chatID, userID int64, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Msg("Form failed")
	b.countError(errorKind(err))
	b.sendHTML(chatID, b.getUserErrorMessage(err), b.mainMenu(userID))
}

func (b *Bot) handleCancel(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	name, _, _ := b.forms.Active(ctx, userID)
	cancelled, err := b.forms.Cancel(ctx, userID)
	if err != nil {
		b.replyError(ctx, msg.Chat.ID, err)
		return
	}
	if !cancelled {
		b.sendHTML(msg.Chat.ID, forms.NothingToCancelText, b.mainMenu(userID))
		return
	}
	b.countForm(name, "cancelled")
	b.sendHTML(msg.Chat.ID, forms.CancelledText, b.mainMenu(userID))
}
