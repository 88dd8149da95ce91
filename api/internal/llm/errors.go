package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("empty response")

// Error is a failed provider call.
type Error struct {
	Provider string
	// Status is the HTTP status, 0 when the call never got a response.
	Status    int
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether retrying the same call may succeed.
func IsTransient(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Transient
	}
	return false
}

// TransientStatus reports whether an HTTP status is worth a retry.
func TransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// NewError classifies err from provider. Network failures count as transient,
// caller cancellation does not.
func NewError(provider string, status int, err error) *Error {
	e := &Error{Provider: provider, Status: status, Err: err}
	switch {
	case status != 0:
		e.Transient = TransientStatus(status)
	case errors.Is(err, context.Canceled):
		e.Transient = false
	case errors.Is(err, context.DeadlineExceeded):
		e.Transient = true
	default:
		var ne net.Error
		e.Transient = errors.As(err, &ne)
	}
	return e
}

// Retry calls fn up to attempts times while it fails with a transient error,
// sleeping attempt*backoff between calls. It stops early when ctx is done.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == attempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", lastErr
}
