package transport

import "context"

// Button is an inline keyboard button. Exactly one of URL or Data is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Keyboard is a list of button rows. A nil or empty Keyboard removes the
// inline keyboard when used in an edit.
type Keyboard [][]Button

func (k Keyboard) Buttons() []Button {
	var out []Button
	for _, row := range k {
		out = append(out, row...)
	}
	return out
}

// Destination is where a message goes: a numeric chat, or a public channel by @username.
type Destination struct {
	ChatID          int64
	ChannelUsername string
}

func Chat(id int64) Destination {
	return Destination{ChatID: id}
}

type Message struct {
	To         Destination
	Text       string
	HTML       bool
	ReplyTo    int
	ForceReply bool
	Keyboard   Keyboard
}

type Photo struct {
	To       Destination
	FileID   string
	Caption  string
	ReplyTo  int
	Keyboard Keyboard
}

// Messenger is everything the publisher needs from the chat platform.
// Send methods return the ID of the created message.
type Messenger interface {
	SendMessage(ctx context.Context, msg Message) (int, error)
	SendPhoto(ctx context.Context, photo Photo) (int, error)
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, kb Keyboard) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
