package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardnews_provider_requests_total",
			Help: "Search provider calls by outcome (success, empty, auth_error, rate_limited, ...)",
		},
		[]string{"provider", "outcome"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boardnews_provider_duration_seconds",
			Help:    "Duration of search provider calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	ProviderQuotaUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "boardnews_provider_quota_used",
			Help: "Successful provider calls counted against today's quota",
		},
		[]string{"provider"},
	)

	SearchCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardnews_search_cache_total",
			Help: "Search cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardnews_pipeline_runs_total",
			Help: "News pipeline invocations by trigger and outcome (articles, fallback, no_news)",
		},
		[]string{"trigger", "outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boardnews_pipeline_duration_seconds",
			Help:    "End-to-end duration of news pipeline invocations",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
	)

	PipelineStageArticles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "boardnews_pipeline_stage_articles",
			Help: "Candidate articles remaining after each stage of the last run",
		},
		[]string{"stage"},
	)
)

// RecordProviderCall updates the provider metrics for one call.
func RecordProviderCall(provider, outcome string, d time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	if d > 0 {
		ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordStage records how many candidates survived a pipeline stage.
func RecordStage(stage string, count int) {
	PipelineStageArticles.WithLabelValues(stage).Set(float64(count))
}

// Server encapsulates an HTTP server for Prometheus metrics and health.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// Route is an extra GET endpoint served next to /metrics.
type Route struct {
	Pattern string
	Handler http.Handler
}

// Start begins listening on the specified port and exposes /metrics,
// /healthz and any extra routes. health may be nil, in which case /healthz
// always answers OK.
func Start(port int, health http.Handler, logger *slog.Logger, routes ...Route) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	if health != nil {
		r.Handle("/healthz", health)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}
	for _, rt := range routes {
		r.Method(http.MethodGet, rt.Pattern, rt.Handler)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv, logger: logger}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
