package observability

import (
	"context"
	"fmt"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with context awareness.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
}

// Field represents a structured log field.
type Field = zap.Field

// NewZapLogger builds the application *zap.Logger from config values.
// Format "text" uses the console encoder; anything else is JSON.
func NewZapLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if format == "text" || format == "console" {
		cfg.Encoding = "console"
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// zapContextLogger implements Logger, stamping the chi request ID onto
// every line when one is present in the context.
type zapContextLogger struct {
	base *zap.Logger
}

// NewLogger wraps a *zap.Logger in the context-aware Logger interface.
func NewLogger(base *zap.Logger) Logger {
	return &zapContextLogger{base: base}
}

func (l *zapContextLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.base.Debug(msg, l.withRequestID(ctx, fields)...)
}

func (l *zapContextLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.base.Info(msg, l.withRequestID(ctx, fields)...)
}

func (l *zapContextLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.base.Warn(msg, l.withRequestID(ctx, fields)...)
}

func (l *zapContextLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.base.Error(msg, l.withRequestID(ctx, fields)...)
}

func (l *zapContextLogger) withRequestID(ctx context.Context, fields []Field) []Field {
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		return append(fields, zap.String("request_id", reqID))
	}
	return fields
}
