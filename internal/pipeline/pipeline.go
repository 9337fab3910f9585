// Package pipeline turns keyword searches into a short, ranked list of board
// game news articles, degrading to fallback content or a no-news sentinel
// instead of failing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/metrics"
	"github.com/yolubot/boardnews/internal/processor"
	"github.com/yolubot/boardnews/internal/scoring"
	"github.com/yolubot/boardnews/internal/search"
	"github.com/yolubot/boardnews/internal/storage"
)

// ErrNoSearch is recorded when no search provider is configured.
var ErrNoSearch = errors.New("pipeline: no search capability configured")

// Run outcomes.
const (
	OutcomeArticles = "articles"
	OutcomeFallback = "fallback"
	OutcomeNoNews   = "no_news"
)

// Searcher is the discovery stage. search.Orchestrator implements it.
type Searcher interface {
	PerformSearch(ctx context.Context, hoursLimit int) ([]search.RawResult, error)
	Available() bool
}

// Config holds the pipeline knobs.
type Config struct {
	ScheduledHours      int
	ManualHours         int
	MaxArticles         int
	FallbackEnabled     bool
	FallbackMaxArticles int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ScheduledHours:      12,
		ManualHours:         6,
		MaxArticles:         3,
		FallbackEnabled:     true,
		FallbackMaxArticles: 2,
	}
}

// Validate rejects configurations that could never yield a valid result.
func (c Config) Validate() error {
	if c.ScheduledHours <= 0 || c.ManualHours <= 0 {
		return fmt.Errorf("pipeline: hours limits must be positive (scheduled=%d, manual=%d)", c.ScheduledHours, c.ManualHours)
	}
	if c.MaxArticles < 1 || c.MaxArticles > 3 {
		return fmt.Errorf("pipeline: max articles must be between 1 and 3, got %d", c.MaxArticles)
	}
	if c.FallbackMaxArticles < 0 {
		return fmt.Errorf("pipeline: fallback max articles must not be negative, got %d", c.FallbackMaxArticles)
	}
	return nil
}

// HoursLimit returns the search window for a trigger.
func (c Config) HoursLimit(isScheduled bool) int {
	if isScheduled {
		return c.ScheduledHours
	}
	return c.ManualHours
}

// Run records one invocation.
type Run struct {
	ID         string          `json:"id"`
	Trigger    string          `json:"trigger"`
	HoursLimit int             `json:"hours_limit"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Outcome    string          `json:"outcome"`
	Stages     processor.Stats `json:"stages"`
	Unposted   int             `json:"unposted"`
	Returned   int             `json:"returned"`
	Error      string          `json:"error,omitempty"`
}

// Stats aggregates runs since process start.
type Stats struct {
	TotalRuns       int           `json:"total_runs"`
	SuccessfulRuns  int           `json:"successful_runs"`
	FallbackRuns    int           `json:"fallback_runs"`
	NoNewsRuns      int           `json:"no_news_runs"`
	AverageDuration time.Duration `json:"average_duration"`
	LastRun         *Run          `json:"last_run,omitempty"`
}

// Pipeline is the news façade.
type Pipeline struct {
	cfg      Config
	search   Searcher
	proc     *processor.Processor
	scorer   *scoring.Engine
	ledger   storage.Ledger
	posted   *PostedFilter
	fallback *FallbackGenerator
	now      func() time.Time
	logger   *slog.Logger

	inflight *semaphore.Weighted

	mu            sync.Mutex
	stats         Stats
	totalDuration time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProcessor replaces the default result processor.
func WithProcessor(proc *processor.Processor) Option {
	return func(p *Pipeline) {
		if proc != nil {
			p.proc = proc
		}
	}
}

// WithScorer replaces the default scoring engine.
func WithScorer(e *scoring.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.scorer = e
		}
	}
}

// WithFallbackTemplates replaces the default fallback templates.
func WithFallbackTemplates(t []FallbackTemplate) Option {
	return func(p *Pipeline) {
		p.fallback.Templates = t
	}
}

// New wires a pipeline. searcher and ledger may be nil: a nil searcher
// always falls back, a nil ledger never filters.
func New(searcher Searcher, ledger storage.Ledger, cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scorer, err := scoring.NewEngine(scoring.DefaultWeights())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		search:   searcher,
		scorer:   scorer,
		ledger:   ledger,
		fallback: NewFallbackGenerator(cfg.FallbackEnabled, cfg.FallbackMaxArticles),
		now:      time.Now,
		logger:   slog.Default(),
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.proc == nil {
		p.proc = processor.New(processor.WithClock(p.now), processor.WithLogger(p.logger))
	}
	p.posted = NewPostedFilter(ledger, p.logger)
	return p, nil
}

// Config returns the active configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// GetBoardGameNews returns 1 to MaxArticles ranked articles, fallback
// articles, or exactly one no-news sentinel. It never returns an error and
// never panics; concurrent callers are serialized.
func (p *Pipeline) GetBoardGameNews(ctx context.Context, isScheduled bool) (result []article.Article) {
	hours := p.cfg.HoursLimit(isScheduled)
	run := &Run{
		ID:         uuid.NewString(),
		Trigger:    trigger(isScheduled),
		HoursLimit: hours,
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("news pipeline panicked while degrading", "run", run.ID, "panic", r, "stack", string(debug.Stack()))
			result = []article.Article{article.NoNews(hours, p.now())}
			run.Outcome = OutcomeNoNews
			run.Returned = 1
			p.record(run)
		}
	}()

	if err := p.inflight.Acquire(ctx, 1); err != nil {
		// Caller gave up before the previous run finished.
		run.StartedAt = p.now()
		run.Error = err.Error()
		result = p.degrade(hours, run)
		p.record(run)
		return result
	}
	defer p.inflight.Release(1)

	run.StartedAt = p.now()
	logger := p.logger.With("run", run.ID, "trigger", run.Trigger, "hours", hours)
	logger.Info("news pipeline started")

	list, err := p.discover(ctx, hours, run)
	switch {
	case err != nil:
		run.Error = err.Error()
		logger.Warn("discovery failed, falling back", "err", err)
		result = p.degrade(hours, run)
	case len(list) == 0:
		logger.Info("no new articles, falling back")
		result = p.degrade(hours, run)
	default:
		run.Outcome = OutcomeArticles
		result = list
	}
	run.Returned = len(result)
	run.Duration = p.now().Sub(run.StartedAt)
	p.record(run)

	logger.Info("news pipeline finished", "outcome", run.Outcome, "articles", run.Returned, "duration", run.Duration)
	return result
}

// discover runs search, processing, ranking and the posted filter. Panics
// inside any stage are turned into errors.
func (p *Pipeline) discover(ctx context.Context, hours int, run *Run) (out []article.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("news pipeline stage panicked", "run", run.ID, "panic", r, "stack", string(debug.Stack()))
			out, err = nil, fmt.Errorf("pipeline: panic: %v", r)
		}
	}()

	if p.search == nil || !p.search.Available() {
		return nil, ErrNoSearch
	}

	raw, err := p.search.PerformSearch(ctx, hours)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	list, st := p.proc.Process(raw, hours)
	run.Stages = st

	ranked := scoring.Rank(p.scorer.ScoreAll(list, p.now()))
	fresh := p.posted.Filter(ctx, ranked)
	run.Unposted = len(fresh)

	metrics.RecordStage("raw", st.Raw)
	metrics.RecordStage("cleaned", st.Cleaned)
	metrics.RecordStage("unique", st.Unique)
	metrics.RecordStage("recent", st.Recent)
	metrics.RecordStage("relevant", st.Relevant)
	metrics.RecordStage("valid", st.Valid)
	metrics.RecordStage("unposted", len(fresh))

	if len(fresh) > p.cfg.MaxArticles {
		fresh = fresh[:p.cfg.MaxArticles]
	}
	return fresh, nil
}

// degrade returns scored fallback articles, or the sentinel when there are none.
func (p *Pipeline) degrade(hours int, run *Run) []article.Article {
	now := p.now()
	fb := p.fallback.Generate(hours)
	if len(fb) == 0 {
		run.Outcome = OutcomeNoNews
		return []article.Article{article.NoNews(hours, now)}
	}
	if len(fb) > p.cfg.MaxArticles {
		fb = fb[:p.cfg.MaxArticles]
	}
	run.Outcome = OutcomeFallback
	return scoring.Rank(p.scorer.ScoreAll(fb, now))
}

func (p *Pipeline) record(run *Run) {
	metrics.PipelineRunsTotal.WithLabelValues(run.Trigger, run.Outcome).Inc()
	metrics.PipelineDuration.Observe(run.Duration.Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.TotalRuns++
	switch run.Outcome {
	case OutcomeArticles:
		p.stats.SuccessfulRuns++
	case OutcomeFallback:
		p.stats.FallbackRuns++
	case OutcomeNoNews:
		p.stats.NoNewsRuns++
	}
	p.totalDuration += run.Duration
	p.stats.AverageDuration = p.totalDuration / time.Duration(p.stats.TotalRuns)
	cp := *run
	p.stats.LastRun = &cp
}

// Stats returns a snapshot of the run counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	if s.LastRun != nil {
		cp := *s.LastRun
		s.LastRun = &cp
	}
	return s
}

// MarkPosted records delivered articles in the ledger. Fallback and
// sentinel articles are skipped. Every article is attempted; failures are
// joined.
func (p *Pipeline) MarkPosted(ctx context.Context, list []article.Article) error {
	if p.ledger == nil {
		return nil
	}
	var errs []error
	for _, a := range list {
		if a.IsFallback || a.IsNoNewsMessage {
			continue
		}
		if err := p.ledger.MarkPosted(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("mark %s: %w", article.Key(a), err))
		}
	}
	return errors.Join(errs...)
}

func trigger(isScheduled bool) string {
	if isScheduled {
		return "scheduled"
	}
	return "manual"
}
