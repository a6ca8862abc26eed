package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the subset of *tgbotapi.BotAPI the adapter calls.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type telegramMessenger struct {
	bot BotAPI
}

func NewTelegramMessenger(bot BotAPI) Messenger {
	return &telegramMessenger{bot: bot}
}

// ParseDestination accepts a numeric chat ID ("-1001234") or a channel
// username ("@Afterlife_update").
func ParseDestination(s string) (Destination, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Destination{}, fmt.Errorf("empty destination")
	}
	if strings.HasPrefix(s, "@") {
		return Destination{ChannelUsername: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Destination{}, fmt.Errorf("destination %q is neither a chat id nor an @username", s)
	}
	return Destination{ChatID: id}, nil
}

func (m *telegramMessenger) SendMessage(ctx context.Context, msg Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out := tgbotapi.NewMessage(msg.To.ChatID, msg.Text)
	out.ChannelUsername = msg.To.ChannelUsername
	out.ReplyToMessageID = msg.ReplyTo
	out.DisableWebPagePreview = true
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	switch {
	case msg.ForceReply:
		out.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	case len(msg.Keyboard) > 0:
		out.ReplyMarkup = toMarkup(msg.Keyboard)
	}

	sent, err := m.bot.Send(out)
	if err != nil {
		return 0, fmt.Errorf("sending message: %w", err)
	}
	return sent.MessageID, nil
}

func (m *telegramMessenger) SendPhoto(ctx context.Context, photo Photo) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	out := tgbotapi.NewPhoto(photo.To.ChatID, tgbotapi.FileID(photo.FileID))
	out.ChannelUsername = photo.To.ChannelUsername
	out.Caption = photo.Caption
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyToMessageID = photo.ReplyTo
	if len(photo.Keyboard) > 0 {
		out.ReplyMarkup = toMarkup(photo.Keyboard)
	}

	sent, err := m.bot.Send(out)
	if err != nil {
		return 0, fmt.Errorf("sending photo: %w", err)
	}
	return sent.MessageID, nil
}

func (m *telegramMessenger) EditCaption(ctx context.Context, chatID int64, messageID int, caption string, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
	edit.ParseMode = tgbotapi.ModeHTML
	markup := toMarkup(kb)
	edit.ReplyMarkup = &markup

	if _, err := m.bot.Request(edit); err != nil {
		return fmt.Errorf("editing caption: %w", err)
	}
	return nil
}

func (m *telegramMessenger) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, toMarkup(kb))
	if _, err := m.bot.Request(edit); err != nil {
		return fmt.Errorf("editing keyboard: %w", err)
	}
	return nil
}

func (m *telegramMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := m.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("deleting message %d: %w", messageID, err)
	}
	return nil
}

func (m *telegramMessenger) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := m.bot.Request(cb); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// toMarkup always returns a non-nil row slice: Telegram reads an empty
// inline_keyboard as "remove the keyboard" but rejects null.
func toMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
