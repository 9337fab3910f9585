package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yolubot/boardnews/internal/metrics"
)

const (
	// DefaultTimeout bounds every single provider call.
	DefaultTimeout = 10 * time.Second
	// DefaultCacheTTL is how long an identical query is answered from memory.
	DefaultCacheTTL = 5 * time.Minute
)

// Route registers a provider with its daily call quota.
type Route struct {
	Provider   Provider
	DailyQuota int
}

// RouterConfig holds router tunables; zero values select the defaults.
type RouterConfig struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// ProviderUsage is a point-in-time view of one provider's quota.
type ProviderUsage struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Used       int    `json:"used"`
	DailyQuota int    `json:"daily_quota"`
}

// Usage is a snapshot of the router's process-wide state.
type Usage struct {
	ResetDate string          `json:"reset_date"`
	Providers []ProviderUsage `json:"providers"`
	CacheSize int             `json:"cache_size"`
}

type cacheKey struct {
	query        string
	maxResults   int
	dateRestrict string
	language     string
}

type cacheEntry struct {
	hits    []Hit
	expires time.Time
}

// Router tries providers in priority order, enforcing per-provider daily
// quotas and caching identical queries for a short TTL. The first provider
// returning at least one hit wins. Router is safe for concurrent use and owns
// all quota and cache state; nothing else mutates it.
type Router struct {
	routes   []Route
	timeout  time.Duration
	cacheTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	usage     map[string]int
	resetDate string
	cache     map[cacheKey]cacheEntry
}

// NewRouter builds a router over routes, which are tried in the given order.
func NewRouter(cfg RouterConfig, routes ...Route) (*Router, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	seen := make(map[string]bool, len(routes))
	for _, rt := range routes {
		if rt.Provider == nil {
			return nil, errors.New("serp: nil provider")
		}
		name := rt.Provider.Name()
		if seen[name] {
			return nil, fmt.Errorf("serp: duplicate provider %q", name)
		}
		seen[name] = true
		if rt.DailyQuota <= 0 {
			return nil, fmt.Errorf("serp: provider %q: daily quota must be positive, got %d", name, rt.DailyQuota)
		}
	}

	return &Router{
		routes:   routes,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		now:      cfg.Now,
		logger:   cfg.Logger,
		usage:    make(map[string]int, len(routes)),
		cache:    make(map[cacheKey]cacheEntry),
	}, nil
}

// Available reports whether at least one provider is configured.
func (r *Router) Available() bool {
	if r == nil {
		return false
	}
	for _, rt := range r.routes {
		if rt.Provider.Enabled() {
			return true
		}
	}
	return false
}

// Search runs query against the first usable provider. It returns
// ErrProvidersExhausted when every provider was skipped and
// ErrAllProvidersFailed when every attempted provider failed or came back
// empty.
func (r *Router) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	key := cacheKey{query: query, maxResults: opts.MaxResults, dateRestrict: opts.DateRestrict, language: opts.Language}
	if hits, ok := r.cached(key); ok {
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		r.logger.Debug("search cache hit", "query", query)
		return hits, nil
	}
	metrics.SearchCacheTotal.WithLabelValues("miss").Inc()

	var errs []error
	attempted := 0
	for _, rt := range r.routes {
		name := rt.Provider.Name()
		if !rt.Provider.Enabled() {
			continue
		}
		if !r.reserve(name, rt.DailyQuota) {
			r.logger.Debug("provider over daily quota", "provider", name, "quota", rt.DailyQuota)
			metrics.RecordProviderCall(name, "quota_exhausted", 0)
			continue
		}

		attempted++
		hits, err := r.call(ctx, rt.Provider, query, opts)
		if err != nil {
			r.release(name)
			errs = append(errs, err)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("serp: search %q: %w", query, ctx.Err())
			}
			continue
		}

		r.store(key, hits)
		return copyHits(hits), nil
	}

	if attempted == 0 {
		return nil, ErrProvidersExhausted
	}
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// HealthCheck probes every enabled provider with a one-result query and
// returns the failures keyed by provider name. Successful probes count
// against the daily quota like any other call.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.routes))
	for _, rt := range r.routes {
		name := rt.Provider.Name()
		if !rt.Provider.Enabled() {
			continue
		}
		if !r.reserve(name, rt.DailyQuota) {
			out[name] = ErrProvidersExhausted
			continue
		}
		_, err := r.call(ctx, rt.Provider, "board game", Options{MaxResults: 1})
		if err != nil {
			r.release(name)
		}
		out[name] = err
	}
	return out
}

func (r *Router) call(ctx context.Context, p Provider, query string, opts Options) ([]Hit, error) {
	name := p.Name()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	hits, err := p.Search(callCtx, query, opts)
	elapsed := time.Since(start)

	if err == nil && len(hits) == 0 {
		err = emptyResult(name)
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &Error{Provider: name, Kind: KindTimeout, Err: err}
		}
		err = classify(name, err)
		kind := KindOf(err)
		metrics.RecordProviderCall(name, kind.String(), elapsed)

		attrs := []any{"provider", name, "query", query, "kind", kind.String(), "err", err}
		switch kind {
		case KindAuth:
			r.logger.Error("provider rejected credentials", attrs...)
		case KindEmpty:
			r.logger.Debug("provider returned no results", attrs...)
		default:
			r.logger.Warn("provider call failed", attrs...)
		}
		return nil, err
	}

	metrics.RecordProviderCall(name, "success", elapsed)
	r.logger.Debug("provider call succeeded", "provider", name, "query", query, "hits", len(hits), "duration", elapsed)
	return hits, nil
}

// Usage returns a snapshot of today's quota counters and the cache size.
func (r *Router) Usage() Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetIfNeededLocked()

	u := Usage{ResetDate: r.resetDate, CacheSize: len(r.cache)}
	for _, rt := range r.routes {
		name := rt.Provider.Name()
		u.Providers = append(u.Providers, ProviderUsage{
			Name:       name,
			Enabled:    rt.Provider.Enabled(),
			Used:       r.usage[name],
			DailyQuota: rt.DailyQuota,
		})
	}
	return u
}

// reserve claims one call from the provider's quota. Claims are returned by
// release when the call does not succeed, so only successful calls count.
func (r *Router) reserve(name string, quota int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetIfNeededLocked()

	if r.usage[name] >= quota {
		return false
	}
	r.usage[name]++
	metrics.ProviderQuotaUsed.WithLabelValues(name).Set(float64(r.usage[name]))
	return true
}

func (r *Router) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usage[name] > 0 {
		r.usage[name]--
	}
	metrics.ProviderQuotaUsed.WithLabelValues(name).Set(float64(r.usage[name]))
}

// resetIfNeededLocked zeroes the counters when the UTC date changes.
func (r *Router) resetIfNeededLocked() {
	today := r.now().UTC().Format(time.DateOnly)
	if r.resetDate == today {
		return
	}
	if r.resetDate != "" {
		r.logger.Info("resetting daily provider usage", "previous", r.resetDate, "today", today)
	}
	r.resetDate = today
	clear(r.usage)
	for _, rt := range r.routes {
		metrics.ProviderQuotaUsed.WithLabelValues(rt.Provider.Name()).Set(0)
	}
}

func (r *Router) cached(key cacheKey) ([]Hit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.cache[key]
	if !ok {
		return nil, false
	}
	if !r.now().Before(e.expires) {
		delete(r.cache, key)
		return nil, false
	}
	return copyHits(e.hits), true
}

func (r *Router) store(key cacheKey, hits []Hit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, e := range r.cache {
		if !now.Before(e.expires) {
			delete(r.cache, k)
		}
	}
	r.cache[key] = cacheEntry{hits: copyHits(hits), expires: now.Add(r.cacheTTL)}
}

func copyHits(hits []Hit) []Hit {
	out := make([]Hit, len(hits))
	copy(out, hits)
	return out
}
