package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"profeic/api/internal/llm"
)

const (
	maxAttempts = 2
	backoff     = 500 * time.Millisecond
	errBodyMax  = 1024
)

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model, baseURL string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// Long generations only send headers once the completion is done.
		ResponseHeaderTimeout: 170 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: strings.TrimRight(baseURL, "/"),
		// Deadlines come from the request context.
		httpc: &http.Client{Timeout: 0, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *Engine) Generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if e.APIKey == "" {
		return "", llm.NewError("openai", 0, errors.New("OPENAI_API_KEY is empty"))
	}
	model := e.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	body := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
	}
	if jsonMode {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}
	if strings.Contains(model, "gpt-5") {
		body.Temperature = 1
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	return llm.Retry(ctx, maxAttempts, backoff, func(ctx context.Context) (string, error) {
		return e.call(ctx, payload)
	})
}

func (e *Engine) call(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", llm.NewError("openai", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.NewError("openai", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", llm.NewError("openai", resp.StatusCode, fmt.Errorf("%s", truncateBytes(bytes.TrimSpace(raw), errBodyMax)))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", llm.NewError("openai", 0, fmt.Errorf("bad envelope: %w", err))
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", llm.NewError("openai", 0, llm.ErrEmptyResponse)
	}
	return out.Choices[0].Message.Content, nil
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
