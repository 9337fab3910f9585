package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yolubot/boardnews/internal/article"
)

// ErrInvalidArticle is returned when an article cannot be recorded, e.g.
// the no-news sentinel or an article without a key.
var ErrInvalidArticle = errors.New("storage: article cannot be recorded as posted")

// Posted is one entry of the posted-article ledger.
type Posted struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	Keyword       string    `json:"keyword"`
	CombinedScore float64   `json:"combined_score"`
	PublishedAt   time.Time `json:"published_at"`
	PostedAt      time.Time `json:"posted_at"`
}

// Filter allows querying for specific ledger entries.
type Filter struct {
	Source string
	Since  *time.Time
	Limit  int
	Offset int
}

// Ledger records which articles were already delivered so they are not
// posted twice. URLs passed to IsPosted are article.Key values.
type Ledger interface {
	IsPosted(ctx context.Context, url string) (bool, error)
	// MarkPosted is idempotent per URL.
	MarkPosted(ctx context.Context, a article.Article) error
	// Recent returns entries newest first.
	Recent(ctx context.Context, filter Filter) ([]*Posted, error)
	// Prune deletes entries posted before the cutoff and reports how many.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// NewPosted builds the ledger entry for a, stamped at now (UTC, whole
// seconds so every backend round-trips it exactly).
func NewPosted(a article.Article, now time.Time) (*Posted, error) {
	key := article.Key(a)
	if a.IsNoNewsMessage || key == "" {
		return nil, ErrInvalidArticle
	}

	published := a.PublishedAt
	if !published.IsZero() {
		published = published.UTC().Truncate(time.Second)
	}

	return &Posted{
		ID:            uuid.NewString(),
		URL:           key,
		Title:         a.Title,
		Source:        a.Source,
		Keyword:       a.SearchKeyword,
		CombinedScore: a.CombinedScore,
		PublishedAt:   published,
		PostedAt:      now.UTC().Truncate(time.Second),
	}, nil
}

// Match reports whether p satisfies the filter's predicates (not paging).
func (f Filter) Match(p *Posted) bool {
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	if f.Since != nil && p.PostedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice.
func (f Filter) Page(list []*Posted) []*Posted {
	if f.Offset > 0 {
		if f.Offset >= len(list) {
			return []*Posted{}
		}
		list = list[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list
}
