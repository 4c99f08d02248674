// Package logging builds the structured logger and carries correlation
// identifiers through a context.Context.
//
// Records are JSON written to stderr; stdout is reserved for the MCP protocol.
// Every record emitted by the client carries an "operation" field and, where a
// request is involved, a "correlationId" field.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/codeguard-mcp/internal/config"
)

// Field keys shared by every component
const (
	FieldCorrelationID = "correlationId"
	FieldOperation     = "operation"
	FieldComponent     = "component"
)

// New builds a zap logger from the logging configuration
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// Component returns a child logger tagged with a component name
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String(FieldComponent, name))
}

type correlationKey struct{}

// NewCorrelationID returns a fresh opaque correlation identifier
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID attaches a correlation identifier to ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the identifier attached to ctx, or "" when none
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// EnsureCorrelationID returns ctx carrying a correlation identifier, creating
// one when ctx has none.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}

// Fields returns the standard correlation and operation fields
func Fields(correlationID, operation string) []zap.Field {
	return []zap.Field{
		zap.String(FieldCorrelationID, correlationID),
		zap.String(FieldOperation, operation),
	}
}
