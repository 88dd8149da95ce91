// Package llm is the client side of the hosted language models. Engines
// return raw text; turning it into records is the decoder's job.
package llm

import (
	"context"
	"errors"
	"fmt"
)

type Engine interface {
	Name() string
	GetModel() string
	// Generate sends prompt and returns the model text untouched. jsonMode
	// asks the provider for a JSON response, which is a hint, not a guarantee.
	Generate(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

type Engines struct {
	Gemini Engine
	OpenAI Engine
}

// GetEngine picks an engine by the llm_name a client sent. An empty name
// means the first configured engine, Gemini first.
func (e *Engines) GetEngine(llmName string) (Engine, error) {
	switch llmName {
	case "":
		if e.Gemini != nil {
			return e.Gemini, nil
		}
		if e.OpenAI != nil {
			return e.OpenAI, nil
		}
		return nil, errors.New("no llm engine configured")
	case "gemini":
		if e.Gemini == nil {
			return nil, errors.New("gemini engine not configured")
		}
		return e.Gemini, nil
	case "gpt", "openai":
		if e.OpenAI == nil {
			return nil, errors.New("openai engine not configured")
		}
		return e.OpenAI, nil
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gemini' or 'gpt'", llmName)
	}
}

// Names lists the configured engine names.
func (e *Engines) Names() []string {
	var out []string
	if e.Gemini != nil {
		out = append(out, e.Gemini.Name())
	}
	if e.OpenAI != nil {
		out = append(out, e.OpenAI.Name())
	}
	return out
}
