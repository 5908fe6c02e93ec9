package service

import (
	"context"
	"fmt"

	"kabinet/internal/domain"
	"kabinet/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramService struct {
	bot domain.TelegramSender
}

var (
	_ domain.TelegramService = (*TelegramService)(nil)
	_ domain.BroadcastSender = (*TelegramService)(nil)
)

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{
		bot: bot,
	}
}

func (s *TelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.bot.Send(c)
}

func (s *TelegramService) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.bot.Request(c)
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.bot.Send(msg)
}

// SendHTML sends text with HTML markup. markup may be nil or any reply markup.
func (s *TelegramService) SendHTML(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return s.bot.Send(msg)
}

func (s *TelegramService) SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error) {
	return s.SendHTML(chatID, text, keyboard)
}

func (s *TelegramService) SendWithInlineKeyboard(
	chatID int64,
	text string,
	keyboard tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	return s.SendHTML(chatID, text, keyboard)
}

func (s *TelegramService) SendVideo(chatID int64, fileID, caption string, markup interface{}) (tgbotapi.Message, error) {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	video.Caption = caption
	video.ParseMode = models.ParseModeHTML
	if markup != nil {
		video.ReplyMarkup = markup
	}
	return s.bot.Send(video)
}

func (s *TelegramService) SendAudio(chatID int64, fileID, caption string, markup interface{}) (tgbotapi.Message, error) {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FileID(fileID))
	audio.Caption = caption
	audio.ParseMode = models.ParseModeHTML
	if markup != nil {
		audio.ReplyMarkup = markup
	}
	return s.bot.Send(audio)
}

func (s *TelegramService) SendVideoNote(chatID int64, fileID string) (tgbotapi.Message, error) {
	return s.bot.Send(tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FileID(fileID)))
}

func (s *TelegramService) SendContact(chatID int64, phone, firstName, lastName string) (tgbotapi.Message, error) {
	contact := tgbotapi.NewContact(chatID, phone, firstName)
	contact.LastName = lastName
	return s.bot.Send(contact)
}

// SendDocument uploads a local file.
func (s *TelegramService) SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	return s.bot.Send(doc)
}

func (s *TelegramService) EditMessage(
	chatID int64,
	messageID int,
	text string,
	keyboard *tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	if keyboard != nil {
		msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard)
		msg.ParseMode = models.ParseModeHTML
		return s.bot.Send(msg)
	}
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = models.ParseModeHTML
	return s.bot.Send(msg)
}

func (s *TelegramService) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := s.bot.Request(callback)
	return err
}

// Deliver отправляет одно сообщение рассылки.
func (s *TelegramService) Deliver(_ context.Context, chatID int64, content models.BroadcastContent) error {
	var err error
	switch content.Kind {
	case models.BroadcastText:
		_, err = s.SendHTML(chatID, content.Text, nil)
	case models.BroadcastVideo:
		_, err = s.SendVideo(chatID, content.FileID, content.Caption, nil)
	case models.BroadcastVideoNote:
		_, err = s.SendVideoNote(chatID, content.FileID)
	default:
		return fmt.Errorf("unknown broadcast kind %q", content.Kind)
	}
	return err
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}
