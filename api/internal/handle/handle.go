// Package handle is the HTTP API: document generation, decode diagnostics,
// the teacher library and Word/PDF export.
package handle

import (
	"context"
	"time"

	"profeic/api/internal/decode"
	"profeic/api/internal/generate"
	"profeic/api/internal/logger"
	"profeic/api/internal/store"
)

// Generator is the part of generate.Service the handlers use.
type Generator interface {
	Generate(ctx context.Context, kind, llmName string, params map[string]any, policy generate.Policy) (decode.Record, error)
	Decode(kind, text string) (decode.Record, error)
}

// Library is the part of store.LibraryRepo the handlers use.
type Library interface {
	Save(ctx context.Context, res store.Resource) (string, error)
	List(ctx context.Context, userID, kind string, limit int) ([]store.Resource, error)
	Get(ctx context.Context, userID, id string) (store.Resource, error)
	Rename(ctx context.Context, userID, id, title string) error
	UpdateContent(ctx context.Context, userID, id string, content map[string]any) error
	Delete(ctx context.Context, userID, id string) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handle struct {
	gen     Generator
	lib     Library
	db      Pinger
	prompts Prompts
	log     *logger.Logger
	timeout time.Duration
	// institution is printed on exports that do not name one.
	institution string
}

type Options struct {
	// Library and DB are nil when no database is configured.
	Library     Library
	DB          Pinger
	Prompts     Prompts
	Log         *logger.Logger
	Timeout     time.Duration
	Institution string
}

func New(gen Generator, opts Options) *Handle {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	return &Handle{
		gen:         gen,
		lib:         opts.Library,
		db:          opts.DB,
		prompts:     opts.Prompts,
		log:         opts.Log,
		timeout:     opts.Timeout,
		institution: opts.Institution,
	}
}
