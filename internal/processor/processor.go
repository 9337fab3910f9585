// Package processor turns raw search hits into clean, unique, recent and
// on-topic articles.
package processor

import (
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/yolubot/boardnews/internal/analyzer"
	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/search"
	"github.com/yolubot/boardnews/internal/serp"
)

const (
	DefaultTitleMax       = 200
	DefaultDescriptionMax = 300
)

// RequiredKeywords is the topic recall filter: an article must mention at
// least one of these to be considered at all.
var RequiredKeywords = []string{
	"board game", "boardgame", "tabletop", "card game", "dice game",
	"kickstarter", "crowdfunding", "announcement", "release", "expansion",
	"ボードゲーム", "ボドゲ", "卓上ゲーム", "カードゲーム", "アナログゲーム", "新作", "発売",
}

// Stats counts candidates remaining after each stage.
type Stats struct {
	Raw      int `json:"raw"`
	Cleaned  int `json:"cleaned"`
	Unique   int `json:"unique"`
	Recent   int `json:"recent"`
	Relevant int `json:"relevant"`
	Valid    int `json:"valid"`
}

// Processor runs the fixed clean, dedup, time, relevance and URL stages.
// All stages are synchronous and touch only in-memory data.
type Processor struct {
	now            func() time.Time
	logger         *slog.Logger
	required       *analyzer.Matcher
	titleMax       int
	descriptionMax int
}

// Option customizes a Processor.
type Option func(*Processor)

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRequiredKeywords replaces the topic recall keywords.
func WithRequiredKeywords(terms ...string) Option {
	return func(p *Processor) {
		p.required = analyzer.NewMatcher(terms...)
	}
}

func New(opts ...Option) *Processor {
	p := &Processor{
		now:            time.Now,
		logger:         slog.Default(),
		required:       analyzer.NewMatcher(RequiredKeywords...),
		titleMax:       DefaultTitleMax,
		descriptionMax: DefaultDescriptionMax,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs every stage in order and reports how many candidates
// survived each one.
func (p *Processor) Process(raw []search.RawResult, hoursLimit int) ([]article.Article, Stats) {
	st := Stats{Raw: len(raw)}

	list := p.Clean(raw)
	st.Cleaned = len(list)

	list = Deduplicate(list)
	st.Unique = len(list)

	list = p.FilterByTime(list, hoursLimit)
	st.Recent = len(list)

	list = p.FilterRelevant(list)
	st.Relevant = len(list)

	list = FilterValidURL(list)
	st.Valid = len(list)

	p.logger.Debug("processed search results",
		"raw", st.Raw, "cleaned", st.Cleaned, "unique", st.Unique,
		"recent", st.Recent, "relevant", st.Relevant, "valid", st.Valid)
	return list, st
}

// Clean converts raw hits into articles with plain-text, whitespace-collapsed
// and length-capped title and description. Hits without a title are dropped.
func (p *Processor) Clean(raw []search.RawResult) []article.Article {
	now := p.now()
	out := make([]article.Article, 0, len(raw))

	for _, r := range raw {
		title := CleanText(r.Hit.Title, p.titleMax)
		if title == "" {
			p.logger.Debug("dropping hit without title", "url", r.Hit.URL, "keyword", r.Keyword)
			continue
		}

		u := strings.TrimSpace(r.Hit.URL)
		source := strings.TrimSpace(r.Hit.Source)
		if source == "" || source == "unknown" {
			source = serp.ExtractDomain(u)
		}

		out = append(out, article.Article{
			Title:         title,
			Description:   CleanText(r.Hit.Snippet, p.descriptionMax),
			URL:           u,
			Source:        source,
			PublishedAt:   ParsePublished(r.Hit.PublishedDate, now),
			SearchKeyword: r.Keyword,
			Layer:         r.Layer,
		})
	}
	return out
}

// Deduplicate keeps the first article for each article.Key.
// It is idempotent.
func Deduplicate(list []article.Article) []article.Article {
	seen := make(map[string]struct{}, len(list))
	out := make([]article.Article, 0, len(list))
	for _, a := range list {
		k := article.Key(a)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}

// FilterByTime drops articles published before now-hoursLimit. Undated
// articles are kept.
func (p *Processor) FilterByTime(list []article.Article, hoursLimit int) []article.Article {
	cutoff := p.now().Add(-time.Duration(hoursLimit) * time.Hour)
	out := make([]article.Article, 0, len(list))
	for _, a := range list {
		if a.HasDate() && a.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FilterRelevant keeps articles whose title or description mentions at
// least one required topic keyword.
func (p *Processor) FilterRelevant(list []article.Article) []article.Article {
	out := make([]article.Article, 0, len(list))
	for _, a := range list {
		if p.required.Any(a.Title + " " + a.Description) {
			out = append(out, a)
		}
	}
	return out
}

// FilterValidURL drops articles without an absolute http(s) URL. The no-news
// sentinel is let through untouched.
func FilterValidURL(list []article.Article) []article.Article {
	out := make([]article.Article, 0, len(list))
	for _, a := range list {
		if a.IsNoNewsMessage || ValidURL(a.URL) {
			out = append(out, a)
		}
	}
	return out
}

// ValidURL reports whether raw is an absolute http or https URL with a host.
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CleanText strips markup, applies NFKC, collapses whitespace and truncates
// to max runes (an ellipsis counts toward max). max <= 0 disables truncation.
func CleanText(s string, max int) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")

	if max > 0 && utf8.RuneCountInString(s) > max {
		r := []rune(s)
		s = strings.TrimSpace(string(r[:max-1])) + "…"
	}
	return s
}
