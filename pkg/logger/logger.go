// Package logger builds the zap loggers used across schoolbook and carries
// them through contexts.
package logger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the logger.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string

	// Environment "production" selects JSON output; anything else selects
	// the development console encoder.
	Environment string
}

// Logger bundles the base logger with its adjustable level.
type Logger struct {
	*zap.Logger
	Level zap.AtomicLevel
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(cfg.Level)))); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	var zc zap.Config
	if IsProduction(cfg.Environment) {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := zc.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: base, Level: lvl}, nil
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

// IsProduction reports whether env names a production deployment.
func IsProduction(env string) bool {
	switch strings.ToLower(env) {
	case "prod", "production":
		return true
	}
	return false
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return Nop()
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// RequestIDKey is the field key for request tracing.
const RequestIDKey = "request_id"

func RequestID(id string) zap.Field   { return zap.String(RequestIDKey, id) }
func Job(name string) zap.Field       { return zap.String("job", name) }
func RunID(id string) zap.Field       { return zap.String("run_id", id) }
func StudentID(id int64) zap.Field    { return zap.Int64("student_id", id) }
func TeacherID(id int64) zap.Field    { return zap.Int64("teacher_id", id) }
func Component(name string) zap.Field { return zap.String("component", name) }
func Latency(d time.Duration) zap.Field {
	return zap.Duration("latency", d)
}
