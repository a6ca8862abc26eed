package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// UpdateMessage is one raw Telegram update waiting to be dispatched.
type UpdateMessage struct {
	UpdateID int
	Payload  []byte
	TraceID  string
}

type Producer interface {
	Enqueue(ctx context.Context, msg UpdateMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg UpdateMessage) error {
	fields := map[string]any{
		"update_id": msg.UpdateID,
		"payload":   msg.Payload,
	}
	if msg.TraceID != "" {
		fields["trace_id"] = msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue update: %w", err)
	}

	p.logger.DebugContext(ctx, "enqueued telegram update", "update_id", msg.UpdateID, "stream", p.stream)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
