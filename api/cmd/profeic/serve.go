package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"profeic/api/internal/config"
	"profeic/api/internal/decode/schemas"
	"profeic/api/internal/generate"
	"profeic/api/internal/handle"
	"profeic/api/internal/llm"
	"profeic/api/internal/llm/gemini"
	"profeic/api/internal/llm/openai"
	"profeic/api/internal/logger"
	"profeic/api/internal/prompt"
	"profeic/api/internal/store"
	"profeic/api/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when TELEGRAM_BOT_TOKEN is set, the chat bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// Schemas panic on a broken embedded file; fail here instead of on the first request.
	reg := schemas.Builtin()

	engines := &llm.Engines{}
	if cfg.GeminiAPIKey != "" {
		g, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		defer g.Close()
		engines.Gemini = g
	}
	if cfg.OpenAIAPIKey != "" {
		engines.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	prompts := prompt.New(cfg.PromptDir)
	gen := generate.New(engines, prompts, reg, log)

	opts := handle.Options{Prompts: prompts, Log: log, Timeout: cfg.RequestTimeout, Institution: cfg.InstitutionName}
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = store.Open(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}
		opts.Library = store.NewLibraryRepo(db)
		opts.DB = db
	} else {
		log.Warn("DATABASE_URL not set; library endpoints disabled")
	}

	var (
		router *telegram.Router
		bot    *tgbotapi.BotAPI
	)
	if cfg.TelegramToken != "" {
		var err error
		if bot, err = tgbotapi.NewBotAPI(cfg.TelegramToken); err != nil {
			return err
		}
		router = &telegram.Router{
			Bot:     bot,
			Gen:     gen,
			Log:     log.With("component", "telegram"),
			Timeout: cfg.RequestTimeout,
			Engines: engines.Names(),
		}
	}

	h := handle.New(gen, opts)
	engine := h.Router(handle.RouterConfig{CORSOrigins: cfg.CORSOrigins, Release: cfg.LogMode == "prod"})
	webhook := router != nil && cfg.TelegramWebhookURL != ""
	if webhook {
		path, err := telegram.SetWebhook(bot, cfg.TelegramWebhookURL)
		if err != nil {
			return err
		}
		engine.POST(path, gin.WrapF(router.WebhookHandler(ctx)))
		log.Info("telegram webhook set", "url", cfg.TelegramWebhookURL)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation can take minutes; the handler deadline is RequestTimeout.
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("profeic listening", "addr", srv.Addr, "engines", engines.Names(), "default_llm", cfg.DefaultLLM())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if router != nil && !webhook {
		g.Go(func() error { return router.Poll(ctx, bot) })
	}

	if db != nil && cfg.LibraryRetention > 0 {
		repo := store.NewLibraryRepo(db)
		g.Go(func() error { return purgeLoop(ctx, repo, 24*time.Hour, cfg.LibraryRetention, log) })
	}

	err := g.Wait()
	log.Info("profeic stopped")
	return err
}

type purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// purgeLoop drops private library rows older than retention, once per every.
// A zero retention keeps everything and returns at once.
func purgeLoop(ctx context.Context, repo purger, every, retention time.Duration, log *logger.Logger) error {
	if retention <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := repo.PurgeOlderThan(ctx, retention)
			if err != nil {
				log.Warn("library purge failed", "error", err.Error())
				continue
			}
			log.Info("library purge", "deleted", n, "retention", retention.String())
		}
	}
}
