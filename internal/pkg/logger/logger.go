package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *slog.Logger
	zapLogger    *zap.Logger
)

// Init builds the zap backend for the given level and format ("json" or "console") and
// installs a slog default that writes through it. The zap logger is returned for the
// infrastructure clients that log through zap directly.
func Init(levelStr, format string) (*zap.Logger, error) {
	zapLevel, slogLevel := parseLevel(levelStr)

	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	handler := slogzap.Option{Level: slogLevel, Logger: zl}.NewZapHandler()
	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
	zapLogger = zl
	return zl, nil
}

// Zap returns the zap backend, initializing defaults if Init was never called.
func Zap() *zap.Logger {
	ensureInitialized()
	return zapLogger
}

// Sync flushes buffered zap output.
func Sync() {
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
}

func parseLevel(levelStr string) (zapcore.Level, slog.Level) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return zapcore.DebugLevel, slog.LevelDebug
	case "INFO", "":
		return zapcore.InfoLevel, slog.LevelInfo
	case "WARN":
		return zapcore.WarnLevel, slog.LevelWarn
	case "ERROR":
		return zapcore.ErrorLevel, slog.LevelError
	default:
		slog.Warn("Invalid log level string, defaulting to INFO", "input", levelStr)
		return zapcore.InfoLevel, slog.LevelInfo
	}
}

func ensureInitialized() {
	if globalLogger == nil {
		if _, err := Init("INFO", "json"); err != nil {
			globalLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
			zapLogger = zap.NewNop()
		}
	}
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelDebug) {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Info(msg, args...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Warn(msg, args...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	ensureInitialized()
	globalLogger.Error(msg, args...)
	Sync()
	os.Exit(1)
}
