//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/catalog"
	"github.com/yolubot/boardnews/internal/pipeline"
	"github.com/yolubot/boardnews/internal/search"
	"github.com/yolubot/boardnews/internal/serp"
	"github.com/yolubot/boardnews/internal/storage"
	"github.com/yolubot/boardnews/internal/storage/sqlite"
	"github.com/yolubot/boardnews/pkg/httpclient"
)

func googleItems(now time.Time) []map[string]any {
	items := make([]map[string]any, 0, 5)
	for i := range 5 {
		items = append(items, map[string]any{
			"title":   fmt.Sprintf("Board game expansion %d announced for Kickstarter", i),
			"link":    fmt.Sprintf("https://boardgamegeek.com/thread/%d", i),
			"snippet": "A new <b>expansion</b> release for the tabletop hit.",
			"pagemap": map[string]any{
				"metatags": []map[string]string{
					{"article:published_time": now.Add(-time.Duration(i+1) * time.Hour).Format(time.RFC3339)},
				},
			},
		})
	}
	return items
}

type stack struct {
	router   *serp.Router
	pipeline *pipeline.Pipeline
	ledger   storage.Ledger

	serperCalls atomic.Int32
	googleCalls atomic.Int32
}

func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{}
	now := time.Now()

	serper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serperCalls.Add(1)
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("missing serper API key header")
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(serper.Close)

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.googleCalls.Add(1)
		if r.URL.Query().Get("dateRestrict") != "w1" {
			t.Errorf("expected dateRestrict w1, got %q", r.URL.Query().Get("dateRestrict"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": googleItems(now)})
	}))
	t.Cleanup(google.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := httpclient.New(httpclient.Config{Timeout: 2 * time.Second})

	sp := serp.NewSerper("serper-key", client)
	sp.Endpoint = serper.URL
	gp := serp.NewGoogleCSE("google-key", "cx", client)
	gp.Endpoint = google.URL

	router, err := serp.NewRouter(serp.RouterConfig{Timeout: time.Second, Logger: logger},
		serp.Route{Provider: sp, DailyQuota: 100},
		serp.Route{Provider: gp, DailyQuota: 100},
	)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	ledger, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	orch := search.New(router, catalog.Default(), search.Config{
		MaxKeywordsPerLayer:  2,
		MaxResultsPerKeyword: 10,
		Concurrency:          2,
		RequestsPerSecond:    50,
		Language:             "en",
		Country:              "us",
	}, search.WithLogger(logger))

	p, err := pipeline.New(orch, ledger, pipeline.DefaultConfig(), pipeline.WithLogger(logger))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	s.router, s.pipeline, s.ledger = router, p, ledger
	return s
}

func TestIntegration_RateLimitedProviderFallsThrough(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	got := s.pipeline.GetBoardGameNews(ctx, false)
	if len(got) != 3 {
		t.Fatalf("expected 3 articles, got %d: %+v", len(got), got)
	}
	for i, a := range got {
		if a.IsFallback || a.IsNoNewsMessage {
			t.Fatalf("article %d: expected a real article, got %+v", i, a)
		}
		if a.Description != "A new expansion release for the tabletop hit." {
			t.Errorf("expected cleaned snippet, got %q", a.Description)
		}
	}
	if got[0].URL != "https://boardgamegeek.com/thread/0" {
		t.Errorf("expected freshest article first, got %s", got[0].URL)
	}

	if s.serperCalls.Load() == 0 || s.googleCalls.Load() == 0 {
		t.Errorf("expected both providers to be tried, serper=%d google=%d", s.serperCalls.Load(), s.googleCalls.Load())
	}
	for _, pu := range s.router.Usage().Providers {
		switch pu.Name {
		case "serper":
			if pu.Used != 0 {
				t.Errorf("rate limited calls must not count against quota, used=%d", pu.Used)
			}
		case "google":
			if pu.Used == 0 {
				t.Errorf("expected google quota to be used")
			}
		}
	}
}

func TestIntegration_PostedArticlesAreNotRepeated(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	first := s.pipeline.GetBoardGameNews(ctx, true)
	if err := s.pipeline.MarkPosted(ctx, first); err != nil {
		t.Fatalf("MarkPosted: %v", err)
	}

	second := s.pipeline.GetBoardGameNews(ctx, true)
	if len(second) != 2 {
		t.Fatalf("expected the 2 remaining articles, got %d", len(second))
	}
	seen := map[string]bool{}
	for _, a := range first {
		seen[a.URL] = true
	}
	for _, a := range second {
		if seen[a.URL] {
			t.Errorf("article %s returned twice", a.URL)
		}
	}
	if err := s.pipeline.MarkPosted(ctx, second); err != nil {
		t.Fatalf("MarkPosted: %v", err)
	}

	third := s.pipeline.GetBoardGameNews(ctx, true)
	if len(third) == 0 || !third[0].IsFallback {
		t.Fatalf("expected fallback once everything is posted, got %+v", third)
	}
	if err := s.pipeline.MarkPosted(ctx, third); err != nil {
		t.Fatalf("MarkPosted: %v", err)
	}

	recent, err := s.ledger.Recent(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 5 {
		t.Errorf("expected 5 ledger entries and no fallback rows, got %d", len(recent))
	}

	st := s.pipeline.Stats()
	if st.TotalRuns != 3 || st.SuccessfulRuns != 2 || st.FallbackRuns != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestIntegration_NoProviders(t *testing.T) {
	router, err := serp.NewRouter(serp.RouterConfig{},
		serp.Route{Provider: serp.NewSerper("", nil), DailyQuota: 100},
	)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	cfg := pipeline.DefaultConfig()
	cfg.FallbackEnabled = false
	p, err := pipeline.New(search.New(router, nil, search.DefaultConfig()), nil, cfg)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	got := p.GetBoardGameNews(context.Background(), false)
	if !article.IsSentinelList(got) {
		t.Fatalf("expected the no-news sentinel, got %+v", got)
	}
}
