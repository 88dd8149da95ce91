package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookPath is the hard-to-guess path Telegram posts updates to.
func WebhookPath(token string) string { return "/telegram/" + shortHash(token) }

// SetWebhook points Telegram at publicURL and returns the path to serve.
func SetWebhook(api *tgbotapi.BotAPI, publicURL string) (string, error) {
	path := WebhookPath(api.Token)
	cfg, err := tgbotapi.NewWebhook(strings.TrimRight(publicURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("telegram webhook: %w", err)
	}
	cfg.DropPendingUpdates = true
	if _, err := api.Request(cfg); err != nil {
		return "", fmt.Errorf("telegram webhook: %w", err)
	}
	return path, nil
}

// WebhookHandler acknowledges each update at once and handles it in the
// background under ctx, so slow generations never make Telegram retry.
func (r *Router) WebhookHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var upd tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&upd); err != nil {
			http.Error(w, "bad update: "+err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		go r.HandleUpdate(ctx, upd)
	}
}

func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}
