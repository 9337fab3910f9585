package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yolubot/boardnews/internal/catalog"
	"github.com/yolubot/boardnews/internal/config"
	"github.com/yolubot/boardnews/internal/pipeline"
	"github.com/yolubot/boardnews/internal/processor"
	"github.com/yolubot/boardnews/internal/scoring"
	"github.com/yolubot/boardnews/internal/search"
	"github.com/yolubot/boardnews/internal/serp"
	"github.com/yolubot/boardnews/internal/storage"
	"github.com/yolubot/boardnews/internal/storage/backend"
	"github.com/yolubot/boardnews/pkg/httpclient"
)

// app holds the wired components for one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	router   *serp.Router
	ledger   storage.Ledger
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	client := httpclient.New(httpclient.Config{Timeout: cfg.Search.Timeout})

	rc := cfg.RouterConfig()
	rc.Logger = logger
	router, err := serp.NewRouter(rc, cfg.Routes(client)...)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	ledger, err := backend.Open(ctx, cfg.Storage.Backend, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	scorer, err := scoring.NewEngine(cfg.Weights())
	if err != nil {
		closeLedger(ledger, logger)
		return nil, err
	}

	orch := search.New(router, catalog.Default(), cfg.SearchConfig(), search.WithLogger(logger))
	p, err := pipeline.New(orch, ledger, cfg.PipelineConfig(),
		pipeline.WithLogger(logger),
		pipeline.WithScorer(scorer),
		pipeline.WithProcessor(processor.New(processor.WithLogger(logger))),
	)
	if err != nil {
		closeLedger(ledger, logger)
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, router: router, ledger: ledger, pipeline: p}, nil
}

func (a *app) Close() {
	closeLedger(a.ledger, a.logger)
}

func closeLedger(l storage.Ledger, logger *slog.Logger) {
	if l == nil {
		return
	}
	if err := l.Close(); err != nil {
		logger.Warn("closing ledger", "err", err)
	}
}
