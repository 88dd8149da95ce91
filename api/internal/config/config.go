package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	DatabaseURL string
	PromptDir   string
	// LibraryRetention, when positive, purges private library resources not
	// updated for that long. Zero keeps saved documents forever.
	LibraryRetention time.Duration

	LogMode        string
	CORSOrigins    []string
	RequestTimeout time.Duration

	TelegramToken      string
	// TelegramWebhookURL switches the bot from long polling to a webhook
	// served by the API, e.g. https://profeic.example.app.
	TelegramWebhookURL string

	InstitutionName string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load reads the process environment once. Nothing else in the service reads it.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8000"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		PromptDir:   getEnv("PROMPT_DIR", ""),

		LogMode:     getEnv("LOG_MODE", "dev"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", ""),
		InstitutionName:    getEnv("INSTITUTION_NAME", "ProfeIC"),
	}

	if cfg.GeminiAPIKey == "" && cfg.OpenAIAPIKey == "" {
		return nil, errors.New("config: GEMINI_API_KEY or OPENAI_API_KEY is required")
	}

	secs, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SEC", "180"))
	if err != nil || secs <= 0 {
		return nil, fmt.Errorf("config: REQUEST_TIMEOUT_SEC must be a positive integer, got %q", os.Getenv("REQUEST_TIMEOUT_SEC"))
	}
	cfg.RequestTimeout = time.Duration(secs) * time.Second

	days, err := strconv.Atoi(getEnv("LIBRARY_RETENTION_DAYS", "0"))
	if err != nil || days < 0 {
		return nil, fmt.Errorf("config: LIBRARY_RETENTION_DAYS must be a non-negative integer, got %q", os.Getenv("LIBRARY_RETENTION_DAYS"))
	}
	cfg.LibraryRetention = time.Duration(days) * 24 * time.Hour

	switch cfg.LogMode {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("config: LOG_MODE must be dev or prod, got %q", cfg.LogMode)
	}
	return cfg, nil
}

// DefaultLLM names the engine used when a request does not pick one.
func (c *Config) DefaultLLM() string {
	if c.GeminiAPIKey != "" {
		return "gemini"
	}
	return "gpt"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
