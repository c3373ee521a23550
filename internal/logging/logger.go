// Package logging wraps zap with the context-field conventions used across
// the Registry, Room, Hub, and Catalog client: a game code, a team name, and
// a round number travel with every log line that has them, without every
// call site having to remember to attach them.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	GameCodeKey      contextKey = "game_code"
	TeamNameKey      contextKey = "team_name"
	RoundNumberKey   contextKey = "round_number"
)

// Initialize sets up the global logger based on the environment. Safe to
// call more than once; only the first call takes effect.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if development {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		logger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger instance, falling back to a
// development logger if Initialize was never called (tests, mainly).
func GetLogger() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

// WithCorrelationID returns a child context carrying a correlation ID for
// subsequent log calls, used by middleware.CorrelationID to thread the
// request's ID from the gin context into context.Context-based logging.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithGameCode returns a child context carrying a game code for subsequent
// log calls. Use when a goroutine is scoped to a single Room.
func WithGameCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, GameCodeKey, code)
}

func WithTeamName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, TeamNameKey, name)
}

func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}

	if cid, ok := ctx.Value(CorrelationIDKey).(string); ok {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	if code, ok := ctx.Value(GameCodeKey).(string); ok {
		fields = append(fields, zap.String("game_code", code))
	}
	if team, ok := ctx.Value(TeamNameKey).(string); ok {
		fields = append(fields, zap.String("team_name", team))
	}
	if round, ok := ctx.Value(RoundNumberKey).(int); ok {
		fields = append(fields, zap.Int("round_number", round))
	}

	fields = append(fields, zap.String("service", "soundclash-core"))

	return fields
}
