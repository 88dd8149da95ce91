package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Poll receives updates by long polling until ctx is done. Each update is
// handled in its own goroutine; Poll waits for them before returning.
func (r *Router) Poll(ctx context.Context, api *tgbotapi.BotAPI) error {
	// getUpdates is refused while a webhook from an earlier deploy is set.
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return err
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	r.log().Info("telegram polling", "bot", api.Self.UserName)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.HandleUpdate(ctx, upd)
			}()
		}
	}
}
