package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.WarnLevel, ParseLevel(""))
}

func TestSetLogger(t *testing.T) {
	old := Logger
	defer SetLogger(old)

	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))

	Info("article added", zap.String("permalink", "hello-world"))
	Debug("dropped")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "article added", entries[0].Message)
	assert.Equal(t, "hello-world", entries[0].ContextMap()["permalink"])
}
