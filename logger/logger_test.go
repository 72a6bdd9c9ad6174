package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"TRACE":   zapcore.DebugLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		" warn ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.ErrorLevel,
		"verbose": zapcore.ErrorLevel,
	}

	for in, expected := range tests {
		assert.Equal(t, expected, parseLevel(in), in)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := base
	base = zap.New(core)
	t.Cleanup(func() { base = prev })

	With(SourceWorker, zap.String("image_id", "img-1")).Info("image classified")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "image classified", entries[0].Message)
		assert.Equal(t, map[string]interface{}{"source": "worker", "image_id": "img-1"}, entries[0].ContextMap())
	}
}
