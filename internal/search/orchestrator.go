// Package search drives the layered keyword search across providers.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yolubot/boardnews/internal/catalog"
	"github.com/yolubot/boardnews/internal/serp"
	"github.com/yolubot/boardnews/pkg/ratelimit"
)

// Searcher is the provider router as seen by the orchestrator.
type Searcher interface {
	Search(ctx context.Context, query string, opts serp.Options) ([]serp.Hit, error)
	Available() bool
}

// RawResult is a provider hit tagged with the query that produced it.
type RawResult struct {
	Hit     serp.Hit
	Keyword string
	Layer   string
	Order   int
}

// Config controls how many queries are issued and how they are paced.
type Config struct {
	MaxKeywordsPerLayer  int
	MaxResultsPerKeyword int
	Concurrency          int
	InterLayerDelay      time.Duration
	RequestsPerSecond    float64
	Jitter               float64
	Language             string
	Country              string
	// RotateKeywords selects a different keyword subset each UTC day.
	RotateKeywords bool
}

// DefaultConfig returns the stock search settings.
func DefaultConfig() Config {
	return Config{
		MaxKeywordsPerLayer:  5,
		MaxResultsPerKeyword: 10,
		Concurrency:          3,
		InterLayerDelay:      time.Second,
		RequestsPerSecond:    2,
		Language:             "ja",
		Country:              "jp",
	}
}

// Orchestrator issues catalog queries layer by layer through a Searcher.
type Orchestrator struct {
	router  Searcher
	catalog *catalog.Catalog
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for keyword rotation.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator. A nil catalog selects catalog.Default().
func New(router Searcher, cat *catalog.Catalog, cfg Config, opts ...Option) *Orchestrator {
	if cat == nil {
		cat = catalog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxKeywordsPerLayer <= 0 {
		cfg.MaxKeywordsPerLayer = DefaultConfig().MaxKeywordsPerLayer
	}
	if cfg.MaxResultsPerKeyword <= 0 {
		cfg.MaxResultsPerKeyword = DefaultConfig().MaxResultsPerKeyword
	}

	o := &Orchestrator{
		router:  router,
		catalog: cat,
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Available reports whether any search provider is configured.
func (o *Orchestrator) Available() bool {
	return o != nil && o.router != nil && o.router.Available()
}

// DateRestrict maps an hour window onto the coarse provider-side filter.
// Exact filtering happens later against each article's publish time.
func DateRestrict(hoursLimit int) string {
	if hoursLimit <= 168 {
		return "w1"
	}
	return "m1"
}

// PerformSearch runs every catalog layer in order and returns all hits in
// submission order (layer, then keyword). A failing keyword never aborts
// the others. The error is non-nil only when no hits were collected and
// every query failed, or when ctx ended before anything was found.
func (o *Orchestrator) PerformSearch(ctx context.Context, hoursLimit int) ([]RawResult, error) {
	opts := serp.Options{
		MaxResults:   o.cfg.MaxResultsPerKeyword,
		DateRestrict: DateRestrict(hoursLimit),
		Language:     o.cfg.Language,
		Country:      o.cfg.Country,
	}

	var seed uint64
	if o.cfg.RotateKeywords {
		seed = catalog.DailySeed(o.now())
	}

	limiter := ratelimit.NewLimiter(o.cfg.RequestsPerSecond, o.cfg.Jitter)
	defer limiter.Stop()

	var (
		out       []RawResult
		attempted int
		failed    int
		firstErr  error
	)

	for i, layer := range o.catalog.Layers {
		if i > 0 {
			if err := ratelimit.Sleep(ctx, o.cfg.InterLayerDelay); err != nil {
				o.logger.Warn("search interrupted between layers", "layer", layer.Name, "err", err)
				break
			}
		}

		queries := layer.Select(o.cfg.MaxKeywordsPerLayer, seed)
		hits, errs := o.runLayer(ctx, limiter, queries, opts)

		exhausted := false
		layerHits := 0
		for j, q := range queries {
			attempted++
			if err := errs[j]; err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				if errors.Is(err, serp.ErrProvidersExhausted) {
					exhausted = true
				}
				o.logger.Warn("keyword search failed", "layer", layer.Name, "keyword", q.Keyword, "err", err)
				continue
			}
			for _, h := range hits[j] {
				out = append(out, RawResult{Hit: h, Keyword: q.Keyword, Layer: layer.Name, Order: len(out)})
				layerHits++
			}
		}

		o.logger.Info("search layer complete", "layer", layer.Name, "queries", len(queries), "hits", layerHits)

		if exhausted {
			o.logger.Warn("search providers exhausted, skipping remaining layers", "after_layer", layer.Name)
			break
		}
	}

	if len(out) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		if attempted > 0 && failed == attempted {
			return nil, fmt.Errorf("search: all %d queries failed: %w", attempted, firstErr)
		}
	}
	return out, nil
}

// runLayer executes queries with bounded fan-out. Results are slot-indexed
// so merge order follows submission order regardless of completion order.
func (o *Orchestrator) runLayer(ctx context.Context, limiter *ratelimit.Limiter, queries []catalog.Query, opts serp.Options) ([][]serp.Hit, []error) {
	hits := make([][]serp.Hit, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)

	for i, q := range queries {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				errs[i] = err
				return nil
			}
			hits[i], errs[i] = o.router.Search(ctx, q.Text, opts)
			return nil
		})
	}
	_ = g.Wait()

	return hits, errs
}
