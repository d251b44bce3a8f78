package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solebound/api/internal/platform/requestctx"
)

// levelEnvKey selects the minimum log level; unset or invalid values mean info.
const levelEnvKey = "API_LOG_LEVEL"

// NewLogger builds the process-wide zap logger: JSON on stdout with Cloud
// Logging field names so severity and timestamps survive ingestion.
func NewLogger() (*zap.Logger, error) {
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:    "message",
		LevelKey:      "severity",
		TimeKey:       "timestamp",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	})

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), minimumLevel())
	return zap.New(core,
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	), nil
}

func minimumLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(levelEnvKey)))
	if raw == "" {
		return level
	}
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(raw)); err == nil {
		level.SetLevel(parsed)
	}
	return level
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// PrintfAdapter exposes a zap logger through the printf interface some
// middleware accepts. Messages land at warn level; the components using this
// adapter only speak up on failure paths.
type PrintfAdapter struct {
	logger *zap.Logger
}

// NewPrintfAdapter wraps the logger; nil falls back to a no-op logger.
func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

// Printf formats the message and logs it.
func (a PrintfAdapter) Printf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}
