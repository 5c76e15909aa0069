package observability

import (
	"context"
	"fmt"

	"github.com/upb/prompt-review/config"
	"github.com/upb/prompt-review/internal/shared"
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

// NewLogger builds the process logger. Output always goes to stderr.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	switch cfg.LogFormat {
	case "json":
		zapCfg = zap.NewProductionConfig()
	default:
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("prompt-review"), nil
}

// contextLogger decorates entries with session-scoped fields from the context.
type contextLogger struct {
	base *zap.Logger
}

// NewContextLogger wraps a zap logger so session and reviewer are attached automatically.
func NewContextLogger(base *zap.Logger) Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &contextLogger{base: base}
}

func (l *contextLogger) with(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.base
	}
	logger := l.base
	if id := shared.SessionID(ctx); id != "" {
		logger = logger.With(zap.String("session_id", id))
	}
	if reviewer := shared.Reviewer(ctx); reviewer != "" {
		logger = logger.With(zap.String("reviewer", reviewer))
	}
	return logger
}

func (l *contextLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx).Debug(msg, fields...)
}

func (l *contextLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx).Info(msg, fields...)
}

func (l *contextLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx).Warn(msg, fields...)
}

func (l *contextLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.with(ctx).Error(msg, fields...)
}
