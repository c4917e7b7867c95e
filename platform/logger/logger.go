// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// MessageIDKey is the context key for the queue message ID
	MessageIDKey contextKey = "message_id"
	// UserKeyKey is the context key for the conversation user key
	UserKeyKey contextKey = "user_key"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports message_id and user_key from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if messageID, ok := ctx.Value(MessageIDKey).(string); ok && messageID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("message_id", messageID)),
		}
	}

	if userKey, ok := ctx.Value(UserKeyKey).(string); ok && userKey != "" {
		newLogger = newLogger.WithUserKey(userKey)
	}

	return newLogger
}

// WithUserKey returns a logger with the conversation user key attached.
func (l *Logger) WithUserKey(userKey string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("user_key", userKey)),
	}
}

// StateTransition logs a conversation state transition.
func (l *Logger) StateTransition(userKey, from, to string) {
	l.Info("state_transition",
		slog.String("user_key", userKey),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// AdapterError logs a failed external AI adapter call.
func (l *Logger) AdapterError(adapter string, err error) {
	l.Error("adapter_error",
		slog.String("adapter", adapter),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// DeliveryError logs a failed outbound reply delivery. Replies are
// best-effort, so this is a warning rather than an error.
func (l *Logger) DeliveryError(recipientKey string, err error) {
	l.Warn("delivery_error",
		slog.String("recipient_key", recipientKey),
		slog.String("error", err.Error()),
	)
}
