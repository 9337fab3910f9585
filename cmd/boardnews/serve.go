package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yolubot/boardnews/internal/metrics"
	"github.com/yolubot/boardnews/internal/report"
	"github.com/yolubot/boardnews/internal/storage"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and expose metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := root.app(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Schedule.Interval
			}

			srv := metrics.Start(a.cfg.Metrics.Port, a.healthHandler(), a.logger,
				metrics.Route{Pattern: "/report", Handler: a.reportHandler()})
			defer func() {
				if err := srv.Stop(context.Background()); err != nil {
					a.logger.Warn("stopping metrics server", "err", err)
				}
			}()

			a.logger.Info("serving", "port", a.cfg.Metrics.Port, "interval", interval)
			if runNow {
				a.scheduledRun(ctx)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					a.logger.Info("shutting down")
					return nil
				case <-ticker.C:
					a.scheduledRun(ctx)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 12*time.Hour, "time between scheduled runs (defaults to schedule.interval)")
	cmd.Flags().BoolVar(&runNow, "run-now", true, "run the pipeline immediately on start")
	return cmd
}

// scheduledRun is the scheduled trigger. Delivery happens elsewhere; the
// returned articles are logged and recorded as posted.
func (a *app) scheduledRun(ctx context.Context) {
	articles := a.pipeline.GetBoardGameNews(ctx, true)
	for _, art := range articles {
		a.logger.Info("selected article",
			"title", art.Title, "url", art.URL, "score", art.CombinedScore,
			"fallback", art.IsFallback, "no_news", art.IsNoNewsMessage)
	}
	if err := a.pipeline.MarkPosted(ctx, articles); err != nil {
		a.logger.Warn("recording posted articles", "err", err)
	}
}

func (a *app) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := "ok"
		if !a.router.Available() {
			status = "degraded"
		}
		body := map[string]any{
			"status":   status,
			"usage":    a.router.Usage(),
			"pipeline": a.pipeline.Stats(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			a.logger.Warn("writing health response", "err", err)
		}
	})
}

func (a *app) reportHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary, err := a.summary(r.Context(), 20, false)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.WriteHTML(w, summary); err != nil {
			a.logger.Warn("writing report", "err", err)
		}
	})
}

// summary collects a status report. check probes every provider, which
// costs one query each.
func (a *app) summary(ctx context.Context, limit int, check bool) (report.Summary, error) {
	var recent []*storage.Posted
	if a.ledger != nil {
		var err error
		recent, err = a.ledger.Recent(ctx, storage.Filter{Limit: limit})
		if err != nil {
			return report.Summary{}, err
		}
	}

	var health map[string]error
	if check {
		health = a.router.HealthCheck(ctx)
	}
	return report.GenerateSummary(time.Now(), a.router.Usage(), a.pipeline.Stats(), recent, health), nil
}
