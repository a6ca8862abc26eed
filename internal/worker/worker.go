package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"afterlife.app/publisher/common/logger"
	"afterlife.app/publisher/internal/queue"
)

const errorBackoff = time.Second

// Worker feeds queued updates to the dispatcher one at a time.
// Updates are never retried: a failure moves the message to the DLQ.
type Worker struct {
	consumer Consumer
	handler  UpdateHandler

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, handler UpdateHandler) *Worker {
	return &Worker{
		consumer:  consumer,
		handler:   handler,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "publisher.worker"})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(errorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "update processing failed",
				"error", err,
				"message_id", msg.ID,
				"update_id", msg.UpdateID)
			if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
				slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
			}
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in update processing",
				"panic", r,
				"message_id", msg.ID,
				"update_id", msg.UpdateID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage decodes one queued update, dispatches it and acks it.
// A returned error means the message is still pending.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UpdateID:  logger.Ptr(msg.UpdateID),
		MessageID: logger.Ptr(msg.ID),
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_update")
	defer sc.End()
	ctx = sc.Context()

	var update tgbotapi.Update
	if err := json.Unmarshal(msg.Payload, &update); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("decoding update: %w", err)
	}

	if err := w.handler.Handle(ctx, update); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("handling update: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Left pending; nothing redelivers it, so the update is not handled twice.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}
