package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"afterlife.app/publisher/common/logger"
	"afterlife.app/publisher/internal/queue"
)

// Telegram updates are small; anything larger is not an update.
const maxUpdateBytes = 1 << 20

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookHandler struct {
	producer queue.Producer
	secret   string
}

func NewWebhookHandler(producer queue.Producer, secret string) *WebhookHandler {
	return &WebhookHandler{producer: producer, secret: secret}
}

// Receive buffers a Telegram update in the update stream. Dispatching happens
// in the worker so updates are handled strictly one at a time.
func (h *WebhookHandler) Receive(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Component: "publisher.http.webhook",
	})

	if h.secret == "" || subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretHeader)), []byte(h.secret)) != 1 {
		slog.WarnContext(ctx, "webhook call with wrong secret", "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > maxUpdateBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "update too large"})
		return
	}

	var probe struct {
		UpdateID *int `json:"update_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.UpdateID == nil {
		slog.WarnContext(ctx, "invalid update payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{UpdateID: probe.UpdateID})

	msg := queue.UpdateMessage{UpdateID: *probe.UpdateID, Payload: body}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.TraceID = sc.TraceID().String()
	}

	if err := h.producer.Enqueue(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue update", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue update"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
