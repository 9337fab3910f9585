package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yolubot/boardnews/internal/pipeline"
	"github.com/yolubot/boardnews/internal/serp"
	"github.com/yolubot/boardnews/internal/storage"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testUsage() serp.Usage {
	return serp.Usage{
		ResetDate: "2024-05-10",
		CacheSize: 4,
		Providers: []serp.ProviderUsage{
			{Name: "serper", Enabled: true, Used: 12, DailyQuota: 100},
			{Name: "google", Enabled: false, Used: 0, DailyQuota: 100},
		},
	}
}

func testRecent() []*storage.Posted {
	return []*storage.Posted{
		{Title: "Wingspan expansion", URL: "https://boardgamegeek.com/a", Source: "boardgamegeek.com", CombinedScore: 81.5, PostedAt: now},
		{Title: "<script>alert(1)</script>", URL: "https://dicebreaker.com/b", Source: "dicebreaker.com", PostedAt: now.Add(-time.Hour)},
		{Title: "Essen preview", URL: "https://boardgamegeek.com/c", Source: "boardgamegeek.com", PostedAt: now.Add(-2 * time.Hour)},
	}
}

func TestGenerateSummary(t *testing.T) {
	stats := pipeline.Stats{TotalRuns: 3, SuccessfulRuns: 2, FallbackRuns: 1}
	health := map[string]error{"serper": nil, "google": errors.New("auth_error")}

	summary := GenerateSummary(now, testUsage(), stats, testRecent(), health)

	if len(summary.PostsBySource) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(summary.PostsBySource))
	}
	if summary.PostsBySource[0].Source != "boardgamegeek.com" || summary.PostsBySource[0].Count != 2 {
		t.Errorf("expected boardgamegeek.com first with 2 posts, got %+v", summary.PostsBySource[0])
	}
	if summary.Health["serper"] != "ok" || summary.Health["google"] != "auth_error" {
		t.Errorf("unexpected health %v", summary.Health)
	}
	if summary.Pipeline.TotalRuns != 3 {
		t.Errorf("expected pipeline stats to be carried, got %+v", summary.Pipeline)
	}

	empty := GenerateSummary(now, serp.Usage{}, pipeline.Stats{}, nil, nil)
	if empty.Health != nil || len(empty.PostsBySource) != 0 {
		t.Errorf("expected empty summary, got %+v", empty)
	}
}

func TestWriteJSON(t *testing.T) {
	summary := GenerateSummary(now, testUsage(), pipeline.Stats{TotalRuns: 5}, nil, nil)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"total_runs": 5`) {
		t.Errorf("expected JSON to contain total_runs: 5, got %s", out)
	}
	if !strings.Contains(out, `"daily_quota": 100`) {
		t.Errorf("expected JSON to contain provider quota")
	}
}

func TestWriteText(t *testing.T) {
	stats := pipeline.Stats{
		TotalRuns:      2,
		SuccessfulRuns: 1,
		NoNewsRuns:     1,
		LastRun:        &pipeline.Run{Trigger: "scheduled", Outcome: pipeline.OutcomeNoNews, Returned: 1, StartedAt: now},
	}
	summary := GenerateSummary(now, testUsage(), stats, testRecent(), map[string]error{"serper": nil})
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"serper   enabled  12/100",
		"google   disabled 0/100",
		"serper: ok",
		"Runs:          2 (articles 1, fallback 0, no news 1)",
		"scheduled no_news (1 returned)",
		"[boardgamegeek.com] Wingspan expansion",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text to contain %q\n%s", want, out)
		}
	}
}

func TestWriteText_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, GenerateSummary(now, serp.Usage{}, pipeline.Stats{}, nil, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(buf.String(), "None") != 2 {
		t.Errorf("expected None for providers and posts, got\n%s", buf.String())
	}
}

func TestWriteHTML(t *testing.T) {
	summary := GenerateSummary(now, testUsage(), pipeline.Stats{FallbackRuns: 2}, testRecent(), nil)
	var buf bytes.Buffer
	if err := WriteHTML(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Board Game News Status</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "dicebreaker.com") {
		t.Errorf("expected HTML to contain dicebreaker.com")
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Errorf("expected titles to be escaped")
	}
	if !strings.Contains(out, "81.5") {
		t.Errorf("expected combined score in HTML")
	}
}
