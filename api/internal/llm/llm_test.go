package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{ name string }

func (s stubEngine) Name() string     { return s.name }
func (s stubEngine) GetModel() string { return "m" }
func (s stubEngine) Generate(context.Context, string, bool) (string, error) {
	return "", nil
}

func TestGetEngine(t *testing.T) {
	both := &Engines{Gemini: stubEngine{"gemini"}, OpenAI: stubEngine{"gpt"}}
	tests := []struct {
		name string
		want string
	}{
		{"", "gemini"},
		{"gemini", "gemini"},
		{"gpt", "gpt"},
		{"openai", "gpt"},
	}
	for _, tt := range tests {
		e, err := both.GetEngine(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, e.Name())
	}
	assert.Equal(t, []string{"gemini", "gpt"}, both.Names())

	_, err := both.GetEngine("claude")
	assert.Error(t, err)

	onlyGPT := &Engines{OpenAI: stubEngine{"gpt"}}
	e, err := onlyGPT.GetEngine("")
	require.NoError(t, err)
	assert.Equal(t, "gpt", e.Name())
	_, err = onlyGPT.GetEngine("gemini")
	assert.Error(t, err)

	_, err = (&Engines{}).GetEngine("")
	assert.Error(t, err)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestNewError_Classifies(t *testing.T) {
	assert.True(t, NewError("p", http.StatusTooManyRequests, errors.New("slow down")).Transient)
	assert.True(t, NewError("p", http.StatusBadGateway, errors.New("x")).Transient)
	assert.False(t, NewError("p", http.StatusBadRequest, errors.New("x")).Transient)
	assert.True(t, NewError("p", 0, fmt.Errorf("dial: %w", timeoutErr{})).Transient)
	assert.True(t, NewError("p", 0, context.DeadlineExceeded).Transient)
	assert.False(t, NewError("p", 0, context.Canceled).Transient)
	assert.False(t, NewError("p", 0, ErrEmptyResponse).Transient)

	err := fmt.Errorf("generate: %w", NewError("gemini", 503, errors.New("busy")))
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.Equal(t, "gemini: status 503: busy", errors.Unwrap(err).Error())
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	out, err := Retry(ctx, 3, time.Millisecond, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewError("p", 503, errors.New("busy"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = Retry(ctx, 3, time.Millisecond, func(context.Context) (string, error) {
		calls++
		return "", NewError("p", 400, errors.New("bad"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	_, err = Retry(ctx, 2, time.Millisecond, func(context.Context) (string, error) {
		calls++
		return "", NewError("p", 500, errors.New("down"))
	})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Retry(cancelled, 3, time.Hour, func(context.Context) (string, error) {
		return "", NewError("p", 503, errors.New("busy"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}
