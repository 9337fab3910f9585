// Package storagetest holds a conformance suite every storage.Ledger
// backend runs from its own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
)

// Run exercises l against the Ledger contract. l must start empty.
func Run(t *testing.T, l storage.Ledger) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	a1 := article.Article{
		Title:         "Wingspan expansion announced",
		URL:           "https://boardgamegeek.com/news/1",
		Source:        "boardgamegeek.com",
		SearchKeyword: "Stonemaier Games",
		CombinedScore: 85,
		PublishedAt:   now.Add(-time.Hour),
	}
	a2 := article.Article{
		Title:         "Gen Con recap",
		URL:           "https://polygon.com/gencon",
		Source:        "polygon.com",
		SearchKeyword: "Gen Con",
		CombinedScore: 70.5,
	}

	posted, err := l.IsPosted(ctx, a1.URL)
	if err != nil {
		t.Fatalf("IsPosted on empty ledger: %v", err)
	}
	if posted {
		t.Fatalf("empty ledger reported %s as posted", a1.URL)
	}

	if err := l.MarkPosted(ctx, a1); err != nil {
		t.Fatalf("MarkPosted: %v", err)
	}
	// Second mark of the same URL must be a no-op.
	if err := l.MarkPosted(ctx, a1); err != nil {
		t.Fatalf("MarkPosted twice: %v", err)
	}
	if err := l.MarkPosted(ctx, a2); err != nil {
		t.Fatalf("MarkPosted a2: %v", err)
	}

	if err := l.MarkPosted(ctx, article.NoNews(6, now)); err == nil {
		t.Errorf("expected sentinel to be rejected")
	}

	for _, a := range []article.Article{a1, a2} {
		posted, err := l.IsPosted(ctx, a.URL)
		if err != nil {
			t.Fatalf("IsPosted: %v", err)
		}
		if !posted {
			t.Errorf("expected %s to be posted", a.URL)
		}
	}

	all, err := l.Recent(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].URL != a2.URL {
		t.Errorf("expected newest entry first, got %s", all[0].URL)
	}

	var got *storage.Posted
	for _, p := range all {
		if p.URL == a1.URL {
			got = p
		}
	}
	if got == nil {
		t.Fatalf("entry for %s missing", a1.URL)
	}
	if got.ID == "" || got.Title != a1.Title || got.Source != a1.Source || got.Keyword != a1.SearchKeyword {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.CombinedScore != a1.CombinedScore {
		t.Errorf("expected score %v, got %v", a1.CombinedScore, got.CombinedScore)
	}
	if got.PublishedAt.Unix() != a1.PublishedAt.Unix() {
		t.Errorf("expected published %v, got %v", a1.PublishedAt, got.PublishedAt)
	}
	if got.PostedAt.IsZero() {
		t.Errorf("expected posted timestamp")
	}

	bySource, err := l.Recent(ctx, storage.Filter{Source: "polygon.com"})
	if err != nil {
		t.Fatalf("Recent by source: %v", err)
	}
	if len(bySource) != 1 || bySource[0].URL != a2.URL {
		t.Errorf("unexpected source filter result %+v", bySource)
	}

	limited, err := l.Recent(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Recent paged: %v", err)
	}
	if len(limited) != 1 || limited[0].URL != a1.URL {
		t.Errorf("unexpected page %+v", limited)
	}

	future := now.Add(time.Hour)
	none, err := l.Recent(ctx, storage.Filter{Since: &future})
	if err != nil {
		t.Fatalf("Recent since: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected nothing posted after %v, got %d", future, len(none))
	}

	n, err := l.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune old: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing pruned, got %d", n)
	}

	n, err = l.Prune(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned, got %d", n)
	}
	if posted, _ := l.IsPosted(ctx, a1.URL); posted {
		t.Errorf("pruned entry still reported as posted")
	}
}
