// Package analyzer finds topic keywords in article text.
package analyzer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TermMatch represents occurrences of a keyword within a text.
type TermMatch struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Matcher performs case-insensitive, width-insensitive substring matching
// of a fixed keyword list. Terms are normalized once at construction so the
// per-article cost is a single normalization of the text.
type Matcher struct {
	terms []string
	lower []string
}

// NewMatcher returns a matcher for terms. Blank and duplicate terms (after
// normalization) are dropped; declaration order is kept.
func NewMatcher(terms ...string) *Matcher {
	m := &Matcher{
		terms: make([]string, 0, len(terms)),
		lower: make([]string, 0, len(terms)),
	}

	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		n := Normalize(term)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		m.terms = append(m.terms, term)
		m.lower = append(m.lower, n)
	}
	return m
}

// Normalize folds text for matching: NFKC (full-width to half-width, etc.),
// lowercase, trimmed.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFKC.String(s)))
}

// Terms returns the matcher's keywords in declaration order.
func (m *Matcher) Terms() []string {
	return append([]string(nil), m.terms...)
}

// Find returns each keyword that occurs in text with its occurrence count.
func (m *Matcher) Find(text string) []TermMatch {
	if m == nil || text == "" {
		return nil
	}

	lowerText := Normalize(text)
	var results []TermMatch
	for i, lt := range m.lower {
		count := strings.Count(lowerText, lt)
		if count == 0 {
			continue
		}
		results = append(results, TermMatch{Term: m.terms[i], Count: count})
	}
	return results
}

// Matches returns the distinct keywords found in text, in declaration order.
func (m *Matcher) Matches(text string) []string {
	found := m.Find(text)
	if len(found) == 0 {
		return nil
	}
	out := make([]string, len(found))
	for i, tm := range found {
		out[i] = tm.Term
	}
	return out
}

// Any reports whether at least one keyword occurs in text.
func (m *Matcher) Any(text string) bool {
	if m == nil || text == "" {
		return false
	}
	lowerText := Normalize(text)
	for _, lt := range m.lower {
		if strings.Contains(lowerText, lt) {
			return true
		}
	}
	return false
}
