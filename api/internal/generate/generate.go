// Package generate turns a request for a document kind into a decoded record:
// prompt, model call, decode. What happens on a bad model answer is the
// caller's Policy.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"profeic/api/internal/decode"
	"profeic/api/internal/decode/schemas"
	"profeic/api/internal/llm"
	"profeic/api/internal/logger"
	"profeic/api/internal/prompt"
)

type Policy int

const (
	// FailFast returns the first failure untouched.
	FailFast Policy = iota
	// RetryOnce calls the model a second time when its answer held no JSON.
	RetryOnce
	// Fallback answers with the kind's canned record instead of an error.
	Fallback
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case RetryOnce:
		return "retry_once"
	case Fallback:
		return "fallback"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

var ErrUnknownKind = errors.New("unknown document kind")

// Prompter builds the prompt text for a kind.
type Prompter interface {
	Build(name string, params map[string]any) (string, error)
}

type Service struct {
	Engines *llm.Engines
	Prompts Prompter
	Schemas *schemas.Registry
	Log     *logger.Logger
}

func New(engs *llm.Engines, prompts *prompt.Builder, reg *schemas.Registry, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{Engines: engs, Prompts: prompts, Schemas: reg, Log: log}
}

// Generate asks the llmName engine for a kind document built from params.
func (s *Service) Generate(ctx context.Context, kind, llmName string, params map[string]any, policy Policy) (decode.Record, error) {
	d, ok := s.Schemas.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	text, err := s.Prompts.Build(kind, params)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: %w", kind, err)
	}
	engine, err := s.Engines.GetEngine(llmName)
	if err != nil {
		return nil, err
	}

	log := s.Log.With("kind", kind, "engine", engine.Name(), "policy", policy.String())
	attempts := 1
	if policy == RetryOnce {
		attempts = 2
	}

	var rec decode.Record
	for i := 1; i <= attempts; i++ {
		start := time.Now()
		var raw string
		raw, err = engine.Generate(ctx, text, true)
		if err != nil {
			log.Warn("llm call failed", "attempt", i, "error", err.Error())
			break
		}
		rec, err = decode.Decode(raw, d)
		if err == nil {
			log.Debug("decoded", "attempt", i, "took_ms", time.Since(start).Milliseconds())
			return rec, nil
		}
		logFailure(log, i, err)
		if decode.KindOf(err) != decode.MalformedOutput {
			break
		}
	}

	if policy == Fallback && !errors.Is(err, context.Canceled) {
		if fb, ok := s.Schemas.Fallback(kind); ok {
			log.Warn("answering with fallback record")
			return fb, nil
		}
	}
	return nil, err
}

// Decode normalizes caller-supplied model text against kind.
func (s *Service) Decode(kind, text string) (decode.Record, error) {
	d, ok := s.Schemas.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	rec, err := decode.Decode(text, d)
	if err != nil {
		logFailure(s.Log.With("kind", kind), 1, err)
	}
	return rec, err
}

func logFailure(log *logger.Logger, attempt int, err error) {
	var f *decode.Failure
	if !errors.As(err, &f) {
		log.Warn("decode failed", "attempt", attempt, "error", err.Error())
		return
	}
	log.Warn("decode failed",
		"attempt", attempt,
		"failure", f.Kind.String(),
		"field", f.Field,
		"keys", f.Keys,
		"excerpt", decode.Excerpt(f.Text, 120),
	)
}
