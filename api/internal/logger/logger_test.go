package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_Redacts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.With("request_id", "r-1").Info("llm call",
		"gemini_api_key", "sk-123",
		"Authorization", "Bearer x",
		"user_id", "profe@colegio.cl",
		"kind", "rubric",
		"params", map[string]any{"bot_token": "t", "nivel": "2° Medio"},
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "[REDACTED]", fields["gemini_api_key"])
	assert.Equal(t, "[REDACTED]", fields["Authorization"])
	assert.Equal(t, "rubric", fields["kind"])
	assert.Regexp(t, `^hash:[0-9a-f]{12}$`, fields["user_id"])
	assert.Equal(t, map[string]any{"bot_token": "[REDACTED]", "nivel": "2° Medio"}, fields["params"])
}

func TestLogger_OddPairs(t *testing.T) {
	assert.Equal(t, []any{"a", 1, "dangling"}, sanitize([]any{"a", 1, "dangling"}))
	assert.Empty(t, sanitize(nil))
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		require.NoError(t, err)
		l.Debug("ok")
	}
	Nop().Error("discarded")
}
