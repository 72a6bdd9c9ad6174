// Package logger holds the process-wide zap logger. It is a no-op until
// Initialize runs, so packages can log from tests without setup.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base = zap.NewNop()

// Source fields tag which part of the service wrote an entry.
var (
	SourceHTTP       = zap.String("source", "http")
	SourceWorker     = zap.String("source", "worker")
	SourceStorage    = zap.String("source", "storage")
	SourceClassifier = zap.String("source", "classifier")
	SourceQueue      = zap.String("source", "queue")
)

func Initialize(level string, isDebug bool) error {
	l, err := New(level, isDebug)
	if err != nil {
		return err
	}

	base = l.With(zap.String("service", "snap-classify"))
	return nil
}

// New builds a console logger in debug mode and a JSON one otherwise.
func New(level string, isDebug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if isDebug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	return cfg.Build()
}

// parseLevel accepts zap level names case-insensitively, plus TRACE as an
// alias for debug. Anything else logs errors only.
func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "trace" {
		return zapcore.DebugLevel
	}

	l, err := zapcore.ParseLevel(level)
	if err != nil || level == "" {
		return zapcore.ErrorLevel
	}
	return l
}

// With returns a child logger carrying fields on every entry.
func With(fields ...zap.Field) *zap.Logger {
	return base.With(fields...)
}

func Debug(msg string, fields ...zap.Field) {
	base.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	base.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	base.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	base.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	base.WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

// Sync flushes buffered entries; call it before exit.
func Sync() {
	_ = base.Sync()
}
