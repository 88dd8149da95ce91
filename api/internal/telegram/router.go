// Package telegram is the chat front-end: teachers send short commands and
// get documents back as plain text.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"profeic/api/internal/decode"
	"profeic/api/internal/generate"
	"profeic/api/internal/llm"
	"profeic/api/internal/logger"
	"profeic/api/internal/render"
)

const maxMessage = 3900

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Generator interface {
	Generate(ctx context.Context, kind, llmName string, params map[string]any, policy generate.Policy) (decode.Record, error)
}

type Router struct {
	Bot     Bot
	Gen     Generator
	Log     *logger.Logger
	Timeout time.Duration
	// Engines lists the configured engine names shown by /engine.
	Engines []string

	chats chatState
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, upd.Message)
		return
	}
	r.send(upd.Message.Chat.ID, helpText)
}

const helpText = `Hola, soy ProfeIC.
Comandos:
/elevar <actividad>: propuesta para subir el nivel DOK
/nee <diagnóstico> | <barrera> | <actividad>: adecuación para estudiantes con NEE
/engine [gemini|gpt]: elegir el modelo
/health: estado del servicio`

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, args)
	case "elevar":
		if args == "" {
			r.send(cid, "Uso: /elevar <actividad>")
			return
		}
		r.run(ctx, cid, request{Kind: "elevation", Params: map[string]any{
			"nivel": "", "asignatura": "", "oa": "", "actividad": args,
		}})
	case "nee":
		parts := splitArgs(args, 3)
		if parts == nil {
			r.send(cid, "Uso: /nee <diagnóstico> | <barrera> | <actividad>")
			return
		}
		r.run(ctx, cid, request{Kind: "nee", Params: map[string]any{
			"diagnostico": parts[0], "barrera": parts[1], "actividad": parts[2],
		}})
	default:
		r.send(cid, "Comando desconocido. Usa /start para ver la ayuda.")
	}
}

// handleEngineCommand switches the engine of one chat: /engine gemini | /engine gpt.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	if args == "" {
		cur := r.chats.engine(chatID)
		if cur == "" {
			cur = "automático"
		}
		r.send(chatID, "Modelo actual: "+cur+"\nDisponibles: "+strings.Join(r.Engines, ", "))
		return
	}
	name := strings.ToLower(strings.Fields(args)[0])
	if name == "openai" {
		name = "gpt"
	}
	if !r.hasEngine(name) {
		r.send(chatID, "Modelo no disponible. Disponibles: "+strings.Join(r.Engines, ", "))
		return
	}
	r.chats.setEngine(chatID, name)
	r.send(chatID, "✅ Modelo: "+name)
}

func (r *Router) hasEngine(name string) bool {
	for _, e := range r.Engines {
		if e == name || (name == "gpt" && e == "openai") {
			return true
		}
	}
	return false
}

// run generates req for chatID and replies with the rendered record.
func (r *Router) run(ctx context.Context, chatID int64, req request) {
	req.LLM = r.chats.engine(chatID)
	r.chats.remember(chatID, req)
	r.send(chatID, "Generando…")

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec, err := r.Gen.Generate(ctx, req.Kind, req.LLM, req.Params, generate.Fallback)
	if err != nil {
		r.log().Warn("telegram generate failed", "chat_id", chatID, "kind", req.Kind, "error", err.Error())
		r.SendError(chatID, err)
		return
	}
	r.SendResult(chatID, render.Text(req.Kind, rec))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("telegram send failed", "chat_id", chatID, "error", err.Error())
	}
}

func (r *Router) SendResult(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text, maxMessage))
	msg.ReplyMarkup = makeResultKeyboard()
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("telegram send failed", "chat_id", chatID, "error", err.Error())
	}
}

func (r *Router) SendError(chatID int64, err error) {
	switch {
	case llm.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		r.send(chatID, "⚠️ El modelo no está disponible ahora. Intenta de nuevo en unos minutos.")
	default:
		r.send(chatID, fmt.Sprintf("❌ No pude generar el documento: %v", err))
	}
}

func (r *Router) log() *logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

// splitArgs splits "a | b | c" into exactly n non-empty parts, or returns nil.
func splitArgs(s string, n int) []string {
	parts := strings.Split(s, "|")
	if len(parts) != n {
		return nil
	}
	for i, p := range parts {
		if parts[i] = strings.TrimSpace(p); parts[i] == "" {
			return nil
		}
	}
	return parts
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}
