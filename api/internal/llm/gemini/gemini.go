package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"profeic/api/internal/llm"
)

const (
	maxAttempts = 3
	backoff     = 300 * time.Millisecond
)

type Engine struct {
	Model       string
	Temperature float32

	client *genai.Client
}

// New opens a client bound to apiKey. Close releases it.
func New(ctx context.Context, apiKey, model string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Engine{
		Model:       strings.TrimSpace(model),
		Temperature: 0.7,
		client:      cl,
	}, nil
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Close() error { return e.client.Close() }

func (e *Engine) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	m := e.client.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(e.Temperature),
	}
	if jsonMode {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}

	return llm.Retry(ctx, maxAttempts, backoff, func(ctx context.Context) (string, error) {
		resp, err := m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", classify(err)
		}
		txt := firstText(resp)
		if strings.TrimSpace(txt) == "" {
			return "", llm.NewError("gemini", 0, llm.ErrEmptyResponse)
		}
		return txt, nil
	})
}

func classify(err error) *llm.Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return llm.NewError("gemini", gerr.Code, err)
	}
	return llm.NewError("gemini", 0, err)
}

// firstText joins the text parts of the first candidate that has content.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
