package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger for structured logging
type Logger struct {
	*zap.Logger
}

// Config contains logging configuration
type Config struct {
	Level  string
	Format string
	Output string
}

// New creates a new logger based on configuration
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.Level = zap.NewAtomicLevelAt(level)

	if cfg.Output != "" && cfg.Output != "stdout" {
		config.OutputPaths = []string{cfg.Output}
		config.ErrorOutputPaths = []string{cfg.Output}
	}

	zapLogger, err := config.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, err
	}

	return &Logger{zapLogger}, nil
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

// Named creates a child logger with the given name
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.Logger.Named(name)}
}

// Info logs an info message with key/value pairs
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.Logger.Info(msg, toZapFields(fields...)...)
}

// Warn logs a warning message with key/value pairs
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.Logger.Warn(msg, toZapFields(fields...)...)
}

// Error logs an error message with key/value pairs
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.Logger.Error(msg, toZapFields(fields...)...)
}

// Debug logs a debug message with key/value pairs
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.Logger.Debug(msg, toZapFields(fields...)...)
}

// toZapFields converts alternating key/value arguments to zap fields.
// Keys that are not strings are skipped along with their values.
func toZapFields(fields ...interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		zapFields = append(zapFields, zap.Any(key, fields[i+1]))
	}
	return zapFields
}

// NewNop creates a no-op logger for testing
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}
