package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nhdandz/TSBot/cache"
	"github.com/nhdandz/TSBot/chunk"
	"github.com/nhdandz/TSBot/config"
	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/observability"
	"github.com/nhdandz/TSBot/rag"
	"github.com/nhdandz/TSBot/router"
	"github.com/nhdandz/TSBot/session"
	"github.com/nhdandz/TSBot/sqlagent"
	"github.com/nhdandz/TSBot/supervisor"
)

// app holds the wired serving stack.
type app struct {
	cfg        *config.Config
	supervisor *supervisor.Supervisor
	metrics    *observability.Metrics
	closers    []func() error
}

// buildApp assembles the full stack from configuration. The chunk file is
// required because the retrieval engine indexes it at startup.
func buildApp(ctx context.Context, cli *CLI) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, metrics: observability.New(nil)}

	embed, err := cfg.Embedding.Build()
	if err != nil {
		return nil, err
	}
	generator, err := cfg.LLM.Build()
	if err != nil {
		return nil, err
	}
	grader, err := cfg.Grader.Build()
	if err != nil {
		return nil, err
	}

	vectors, err := databases.NewQdrantStore(cfg.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	a.closers = append(a.closers, vectors.Close)

	pg, err := databases.NewPostgres(cfg.Postgres)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, pg.Close)

	if cfg.Paths.Chunks == "" {
		a.Close()
		return nil, fmt.Errorf("paths.chunks is required (run 'tsbot ingest' against the same file first)")
	}
	chunks, err := chunk.LoadFile(cfg.Paths.Chunks)
	if err != nil {
		a.Close()
		return nil, err
	}
	store, err := chunk.NewStore(chunks)
	if err != nil {
		a.Close()
		return nil, err
	}
	slog.Info("Chunk store loaded", "chunks", store.Len())

	ragEngine := rag.NewEngine(cfg.RAG, store, vectors, embed, generator, grader,
		rag.NewHTTPCrossEncoder(cfg.Reranker), cache.New(cfg.Cache.ToCache()))
	ragEngine.SetCacheObserver(a.metrics)
	sqlEngine := sqlagent.NewEngine(cfg.SQLAgent, pg, vectors, embed, generator, grader)
	sqlEngine.SetObserver(a.metrics)

	routes, err := router.LoadRoutesFile(cfg.Paths.Intents)
	if err != nil {
		a.Close()
		return nil, err
	}
	intents := router.New(routes, embed, vectors, cfg.Router.ToRouter())
	if err := intents.Initialize(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize router: %w", err)
	}

	transcript, err := openTranscript(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, transcript.Close)

	a.supervisor = supervisor.New(cfg.Supervisor, sqlEngine, ragEngine, intents, generator, pg, transcript)

	if cfg.App.MetricsAddr != "" {
		go func() {
			slog.Info("Serving metrics", "addr", cfg.App.MetricsAddr)
			if err := http.ListenAndServe(cfg.App.MetricsAddr, observability.Handler()); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	return a, nil
}

// openTranscript opens the session store. The postgres dialect reuses the
// relational DSN when none is configured.
func openTranscript(cfg *config.Config) (*session.Store, error) {
	dsn := cfg.Session.DSN
	if dsn == "" && cfg.Session.Dialect == "postgres" {
		dsn = cfg.Postgres.DSN()
	}
	db, err := sql.Open(cfg.Session.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	return session.NewStore(db, cfg.Session.Dialect)
}

// ask runs one query through the supervisor with metrics attached.
func (a *app) ask(ctx context.Context, sessionID, query string) *supervisor.Response {
	start := time.Now()
	resp := a.supervisor.Process(ctx, sessionID, query)
	a.metrics.ObserveStage(observability.StageTotal, start)

	if resp.Intent != "" {
		a.metrics.RecordRoute(resp.Intent)
	}
	outcome := "ok"
	if resp.Err != "" {
		outcome = "error"
	}
	a.metrics.RecordQuery(resp.Intent, outcome)
	return resp
}

// Close releases every held resource in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}
}
