package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// The dispatcher sets them once per update so every log line in a handler carries
// the chat, operator and device it concerns.
type LogFields struct {
	UpdateID   *int    // Telegram update ID
	ChatID     *int64  // Chat the update came from
	OperatorID *int64  // Telegram user ID of the acting operator
	Device     *string // Device codename being posted
	MessageID  *string // Redis stream message ID (webhook mode)
	Component  string  // Component name, e.g. "publisher.bot.dispatcher"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.UpdateID != nil {
		result.UpdateID = new.UpdateID
	}
	if new.ChatID != nil {
		result.ChatID = new.ChatID
	}
	if new.OperatorID != nil {
		result.OperatorID = new.OperatorID
	}
	if new.Device != nil {
		result.Device = new.Device
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ChatID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
