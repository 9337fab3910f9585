// Package catalog holds the layered search keywords used to discover news.
package catalog

import (
	"math/rand/v2"
	"time"
)

// Layer names, in editorial priority order.
const (
	General    = "general"
	Publishers = "publishers"
	Events     = "events"
	Trends     = "trends"
)

// Layer is a named group of keywords sharing an editorial theme. Suffix is
// appended to every keyword when the query is built.
type Layer struct {
	Name     string
	Suffix   string
	Keywords []string
}

// Catalog is an ordered list of layers. Earlier layers win deduplication.
type Catalog struct {
	Layers []Layer
}

// Default returns the built-in board game catalog.
func Default() *Catalog {
	return &Catalog{Layers: []Layer{
		{
			Name: General,
			Keywords: []string{
				"board game news",
				"ボードゲーム 新作",
				"tabletop game release",
				"board game announcement",
				"boardgame kickstarter",
				"ボードゲーム ニュース",
			},
		},
		{
			Name:   Publishers,
			Suffix: "board game news",
			Keywords: []string{
				"Asmodee",
				"CMON",
				"Stonemaier Games",
				"Z-Man Games",
				"Fantasy Flight Games",
				"Days of Wonder",
				"Uwe Rosenberg",
				"Reiner Knizia",
				"アークライト",
				"ホビージャパン",
				"オインクゲームズ",
				"Jamey Stegmaier",
			},
		},
		{
			Name:   Events,
			Suffix: "news",
			Keywords: []string{
				"Essen Spiel",
				"Gen Con",
				"UK Games Expo",
				"PAX Unplugged",
				"ゲームマーケット",
				"Origins Game Fair",
				"Spiel des Jahres",
			},
		},
		{
			Name: Trends,
			Keywords: []string{
				"board game crowdfunding",
				"Gamefound campaign",
				"board game industry",
				"tabletop industry trends",
				"ボードゲーム 市場",
				"legacy board game",
			},
		},
	}}
}

// Query is one keyword ready to be sent to a search provider.
type Query struct {
	Keyword string
	Layer   string
	Text    string
}

// Select returns at most k queries from the layer. With seed 0 the first k
// keywords are taken in catalog order; any other seed picks a deterministic
// shuffle so rotation stays reproducible.
func (l Layer) Select(k int, seed uint64) []Query {
	if k <= 0 || len(l.Keywords) == 0 {
		return nil
	}

	keywords := append([]string(nil), l.Keywords...)
	if seed != 0 {
		r := rand.New(rand.NewPCG(seed, uint64(len(l.Name))))
		r.Shuffle(len(keywords), func(i, j int) {
			keywords[i], keywords[j] = keywords[j], keywords[i]
		})
	}
	if k > len(keywords) {
		k = len(keywords)
	}

	out := make([]Query, 0, k)
	for _, kw := range keywords[:k] {
		text := kw
		if l.Suffix != "" {
			text = kw + " " + l.Suffix
		}
		out = append(out, Query{Keyword: kw, Layer: l.Name, Text: text})
	}
	return out
}

// DailySeed derives a rotation seed from the UTC date of t, e.g. 20240510.
func DailySeed(t time.Time) uint64 {
	y, m, d := t.UTC().Date()
	return uint64(y*10000 + int(m)*100 + d)
}
