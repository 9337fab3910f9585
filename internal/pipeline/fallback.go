package pipeline

import (
	"fmt"
	"strings"

	"github.com/yolubot/boardnews/internal/article"
)

// FallbackTemplate describes one synthesized article. Description may
// contain a single %d verb for the search window in hours.
type FallbackTemplate struct {
	Title       string
	Description string
	URL         string
	Source      string
}

// DefaultFallbackTemplates point readers at well-known news hubs.
func DefaultFallbackTemplates() []FallbackTemplate {
	return []FallbackTemplate{
		{
			Title:       "Board Game News: latest headlines",
			Description: "No new articles matched in the last %d hours. Catch up on recent releases and announcements at Board Game Quest.",
			URL:         "https://www.boardgamequest.com/latest-news/",
			Source:      "boardgamequest.com",
		},
		{
			Title:       "Tabletop Gaming Update: industry roundup",
			Description: "Nothing new surfaced in the last %d hours. Meeple Mountain covers recent developments across the tabletop industry.",
			URL:         "https://www.meeplemountain.com/news/",
			Source:      "meeplemountain.com",
		},
		{
			Title:       "BoardGameGeek News",
			Description: "Publisher announcements, crowdfunding campaigns and event coverage from the last %d hours and beyond.",
			URL:         "https://boardgamegeek.com/blog/1/boardgamegeek-news",
			Source:      "boardgamegeek.com",
		},
	}
}

// FallbackGenerator synthesizes articles when no real result survives.
type FallbackGenerator struct {
	Enabled   bool
	Max       int
	Templates []FallbackTemplate
}

// NewFallbackGenerator returns a generator over the default templates.
func NewFallbackGenerator(enabled bool, max int) *FallbackGenerator {
	return &FallbackGenerator{Enabled: enabled, Max: max, Templates: DefaultFallbackTemplates()}
}

// Generate returns up to Max fallback articles, or nil when disabled.
// Results are unscored and undated.
func (g *FallbackGenerator) Generate(hoursLimit int) []article.Article {
	if g == nil || !g.Enabled || g.Max <= 0 {
		return nil
	}

	n := min(g.Max, len(g.Templates))
	out := make([]article.Article, 0, n)
	for _, t := range g.Templates[:n] {
		desc := t.Description
		if strings.Contains(desc, "%d") {
			desc = fmt.Sprintf(desc, hoursLimit)
		}
		out = append(out, article.Article{
			Title:         t.Title,
			Description:   desc,
			URL:           t.URL,
			Source:        t.Source,
			SearchKeyword: "fallback",
			Layer:         "fallback",
			IsFallback:    true,
		})
	}
	return out
}
