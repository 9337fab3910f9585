// Package scoring rates articles on credibility, relevance and urgency and
// ranks them by a fixed weighted combination.
package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yolubot/boardnews/internal/analyzer"
	"github.com/yolubot/boardnews/internal/article"
	"github.com/yolubot/boardnews/internal/serp"
)

const (
	DefaultCredibility  = 60
	ProvenanceBonus     = 3
	RelevanceBase       = 50
	RelevanceIncrement  = 10
	UnknownDateUrgency  = 50
	FallbackCredibility = 20 // subtracted from fallback articles
)

// SourceCredibility maps outlet domains to fixed reliability points.
var SourceCredibility = map[string]int{
	"boardgamegeek.com":     90,
	"dicetower.com":         85,
	"shutupandsitdown.com":  85,
	"boardgamewire.com":     85,
	"gamemarket.jp":         85,
	"polygon.com":           80,
	"tabletopgaming.co.uk":  80,
	"tgiw.info":             80,
	"bodoge.hoobby.net":     80,
	"kotaku.com":            75,
	"meeplemountain.com":    75,
	"boardgamequest.com":    75,
	"kickstarter.com":       70,
	"gamefound.com":         70,
}

// ProvenanceMarkers signal first-party or attributed reporting.
var ProvenanceMarkers = []string{
	"official", "press-release", "press release", "according to", "公式", "プレスリリース",
}

// HighValueKeywords each add RelevanceIncrement to the relevance score.
var HighValueKeywords = []string{
	"kickstarter", "announce", "release", "expansion", "award", "crowdfunding", "gamefound", "preorder",
	"新作", "発売", "発表", "拡張", "受賞", "クラウドファンディング",
}

// Weights is the linear combination applied to the three scores.
type Weights struct {
	Credibility float64 `json:"credibility"`
	Relevance   float64 `json:"relevance"`
	Urgency     float64 `json:"urgency"`
}

// DefaultWeights favours source credibility over topicality and freshness.
func DefaultWeights() Weights {
	return Weights{Credibility: 0.5, Relevance: 0.3, Urgency: 0.2}
}

// Validate rejects negative weights and an all-zero combination.
func (w Weights) Validate() error {
	if w.Credibility < 0 || w.Relevance < 0 || w.Urgency < 0 {
		return fmt.Errorf("scoring: weights must be non-negative, got %+v", w)
	}
	if w.Credibility+w.Relevance+w.Urgency <= 0 {
		return errors.New("scoring: at least one weight must be positive")
	}
	return nil
}

// Engine scores articles. Every method is a pure function of its inputs and
// the explicit now; the engine never reads the wall clock itself.
type Engine struct {
	weights    Weights
	sources    map[string]int
	provenance *analyzer.Matcher
	keywords   *analyzer.Matcher
}

// NewEngine returns an engine with the built-in tables.
func NewEngine(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		weights:    w,
		sources:    SourceCredibility,
		provenance: analyzer.NewMatcher(ProvenanceMarkers...),
		keywords:   analyzer.NewMatcher(HighValueKeywords...),
	}, nil
}

// Weights returns the engine's combination weights.
func (e *Engine) Weights() Weights { return e.weights }

// Credibility scores the outlet, plus a one-off bonus for provenance markers
// in the URL or text.
func (e *Engine) Credibility(a article.Article) int {
	score, ok := e.lookupSource(a)
	if !ok {
		score = DefaultCredibility
	}
	if e.provenance.Any(a.URL + " " + a.Title + " " + a.Description) {
		score += ProvenanceBonus
	}
	if a.IsFallback {
		score -= FallbackCredibility
	}
	return clamp(score)
}

func (e *Engine) lookupSource(a article.Article) (int, bool) {
	for _, candidate := range []string{serp.ExtractDomain(a.URL), strings.ToLower(strings.TrimSpace(a.Source))} {
		host := strings.TrimPrefix(candidate, "www.")
		for host != "" {
			if v, ok := e.sources[host]; ok {
				return v, true
			}
			// Walk up subdomains: news.boardgamegeek.com -> boardgamegeek.com.
			i := strings.IndexByte(host, '.')
			if i < 0 {
				break
			}
			host = host[i+1:]
		}
	}
	return 0, false
}

// Relevance returns the base score plus an increment per distinct
// high-value keyword, and the keywords that matched.
func (e *Engine) Relevance(a article.Article) (int, []string) {
	matched := e.keywords.Matches(a.Title + " " + a.Description)
	return clamp(RelevanceBase + RelevanceIncrement*len(matched)), matched
}

// Urgency is a step function of article age. Undated and fallback articles
// get a neutral value; future timestamps count as brand new.
func Urgency(a article.Article, now time.Time) int {
	if !a.HasDate() || a.IsFallback {
		return UnknownDateUrgency
	}

	age := now.Sub(a.PublishedAt)
	if age < 0 {
		age = 0
	}
	switch {
	case age <= time.Hour:
		return 95
	case age <= 6*time.Hour:
		return 75
	case age <= 24*time.Hour:
		return 50
	case age <= 168*time.Hour:
		return 25
	default:
		return 10
	}
}

// Combined applies the weights to the three scores of a.
func (e *Engine) Combined(a article.Article) float64 {
	return e.weights.Credibility*float64(a.CredibilityScore) +
		e.weights.Relevance*float64(a.RelevanceScore) +
		e.weights.Urgency*float64(a.UrgencyScore)
}

// Score returns a copy of a with all score fields populated.
func (e *Engine) Score(a article.Article, now time.Time) article.Article {
	a.CredibilityScore = e.Credibility(a)
	a.RelevanceScore, a.MatchedKeywords = e.Relevance(a)
	a.UrgencyScore = Urgency(a, now)
	a.CombinedScore = e.Combined(a)
	return a
}

// ScoreAll scores every article into a new slice.
func (e *Engine) ScoreAll(list []article.Article, now time.Time) []article.Article {
	out := make([]article.Article, len(list))
	for i, a := range list {
		out[i] = e.Score(a, now)
	}
	return out
}

// Rank returns a copy sorted by combined score descending, newer articles
// first on ties. The sort is stable, so fully tied articles keep their input
// order.
func Rank(list []article.Article) []article.Article {
	out := append([]article.Article(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
