package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter implements Logger on top of zap.
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapLogger builds a console-encoded zap logger from the given config.
func NewZapLogger(config LogConfig) (Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var writer zapcore.WriteSyncer = zapcore.AddSync(os.Stdout)
	if config.Output != nil {
		writer = zapcore.AddSync(config.Output)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), writer, zapLevel(config.Level))
	logger := zap.New(core)
	if config.Prefix != "" {
		logger = logger.Named(config.Prefix)
	}

	return &ZapAdapter{logger: logger}, nil
}

func (z *ZapAdapter) Debug(msg string, fields ...Field) {
	z.logger.Debug(msg, zapFields(fields)...)
}

func (z *ZapAdapter) Info(msg string, fields ...Field) {
	z.logger.Info(msg, zapFields(fields)...)
}

func (z *ZapAdapter) Warn(msg string, fields ...Field) {
	z.logger.Warn(msg, zapFields(fields)...)
}

func (z *ZapAdapter) Error(msg string, err error, fields ...Field) {
	converted := zapFields(fields)
	if err != nil {
		converted = append(converted, zap.Error(err))
	}
	z.logger.Error(msg, converted...)
}

// WithFields returns a child logger carrying the extra fields.
func (z *ZapAdapter) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(zapFields(fields)...)}
}

// WithContext returns a child logger carrying request-scoped identifiers
// found in the context.
func (z *ZapAdapter) WithContext(ctx context.Context) Logger {
	var fields []zap.Field
	if requestID, ok := ctx.Value("request_id").(string); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if userID, ok := ctx.Value("user_id").(string); ok {
		fields = append(fields, zap.String("user_id", userID))
	}
	if len(fields) == 0 {
		return z
	}
	return &ZapAdapter{logger: z.logger.With(fields...)}
}

// Sync flushes buffered entries. Called on shutdown.
func (z *ZapAdapter) Sync() error {
	return z.logger.Sync()
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapFields(fields []Field) []zap.Field {
	converted := make([]zap.Field, len(fields))
	for i, field := range fields {
		converted[i] = zap.Any(field.Key, field.Value)
	}
	return converted
}
