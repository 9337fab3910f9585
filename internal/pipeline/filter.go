package pipeline

import (
	"context"
	"log/slog"

	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/storage"
)

// PostedFilter drops articles that the ledger already recorded as posted.
// An unreachable ledger is treated as empty: news keeps flowing and a
// duplicate post is the worst case.
type PostedFilter struct {
	ledger storage.Ledger
	logger *slog.Logger
}

// NewPostedFilter returns a filter over ledger; a nil ledger filters nothing.
func NewPostedFilter(ledger storage.Ledger, logger *slog.Logger) *PostedFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostedFilter{ledger: ledger, logger: logger}
}

// Filter returns the articles not yet posted, preserving order. Fallback
// and sentinel articles are never looked up.
func (f *PostedFilter) Filter(ctx context.Context, list []article.Article) []article.Article {
	if f == nil || f.ledger == nil {
		return list
	}

	out := make([]article.Article, 0, len(list))
	failed := false
	for _, a := range list {
		if failed || a.IsFallback || a.IsNoNewsMessage {
			out = append(out, a)
			continue
		}

		posted, err := f.ledger.IsPosted(ctx, article.Key(a))
		if err != nil {
			// Stop consulting a broken ledger for the rest of the batch.
			f.logger.Warn("posted ledger unavailable, treating articles as unposted", "err", err)
			failed = true
			out = append(out, a)
			continue
		}
		if posted {
			f.logger.Debug("skipping already posted article", "url", a.URL)
			continue
		}
		out = append(out, a)
	}
	return out
}
