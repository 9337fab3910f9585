package article

import (
	"fmt"
	"strings"
	"time"
)

// Article is a candidate news item handed from the discovery pipeline to the
// delivery layer. It is treated as immutable once scored.
type Article struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	PublishedAt   time.Time `json:"published_at"` // zero when the provider gave no usable date
	SearchKeyword string    `json:"search_keyword"`
	Layer         string    `json:"layer"`

	CredibilityScore int      `json:"credibility_score"`
	RelevanceScore   int      `json:"relevance_score"`
	UrgencyScore     int      `json:"urgency_score"`
	CombinedScore    float64  `json:"combined_score"`
	MatchedKeywords  []string `json:"matched_keywords,omitempty"`

	IsFallback      bool `json:"is_fallback"`
	IsNoNewsMessage bool `json:"is_no_news_message"`
}

// Key identifies an article for deduplication and for the posted ledger.
// Articles without an http(s) URL fall back to their lowercased title.
func Key(a Article) string {
	u := strings.TrimSpace(a.URL)
	if strings.HasPrefix(u, "http") {
		return u
	}
	return strings.ToLower(strings.TrimSpace(a.Title))
}

// HasDate reports whether PublishedAt carries a real timestamp.
func (a Article) HasDate() bool {
	return !a.PublishedAt.IsZero()
}

// NoNews builds the sentinel returned when there is nothing to report.
func NoNews(hoursLimit int, now time.Time) Article {
	msg := fmt.Sprintf("No newsworthy board game articles were found in the last %d hours.", hoursLimit)
	return Article{
		Title:           "No news",
		Description:     msg,
		Source:          "boardnews",
		PublishedAt:     now,
		IsNoNewsMessage: true,
	}
}

// IsSentinelList reports whether list is the single no-news sentinel.
func IsSentinelList(list []Article) bool {
	return len(list) == 1 && list[0].IsNoNewsMessage
}
