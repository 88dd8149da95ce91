package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID

	switch cb.Data {
	case callbackRegenerate:
		req, ok := r.chats.lastRequest(cid)
		if !ok {
			r.send(cid, "No encontré la solicitud anterior. Envía el comando de nuevo.")
			return
		}
		// drop the button from the old result
		edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
		_, _ = r.Bot.Send(edit)
		r.run(ctx, cid, req)
	}
}
