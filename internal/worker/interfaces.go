package worker

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"afterlife.app/publisher/internal/queue"
)

// Consumer abstracts the update stream for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// UpdateHandler is satisfied by the bot dispatcher.
type UpdateHandler interface {
	Handle(ctx context.Context, update tgbotapi.Update) error
}
