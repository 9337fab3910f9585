// Package serp wraps the external web-search backends behind a single
// Provider contract and routes queries across them with quotas and caching.
package serp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/yolubot/boardnews/pkg/httpclient"
)

// Hit is one raw search result, normalized across providers.
type Hit struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	PublishedDate string `json:"published_date,omitempty"`
	Source        string `json:"source,omitempty"`
	Provider      string `json:"provider"`
}

// Options tune a single search call.
type Options struct {
	MaxResults   int
	DateRestrict string // "w1" or "m1"; empty means unrestricted
	Language     string
	Country      string
}

// Provider abstracts one search backend with its own response shape.
// Implementations must report failures as *Error so callers can tell auth,
// rate-limit and network problems apart.
type Provider interface {
	Name() string
	Enabled() bool
	Search(ctx context.Context, query string, opts Options) ([]Hit, error)
}

var (
	// ErrProvidersExhausted means every provider was skipped because it is
	// disabled or over today's quota.
	ErrProvidersExhausted = errors.New("serp: all providers exhausted")
	// ErrAllProvidersFailed means at least one provider was attempted and
	// none returned results.
	ErrAllProvidersFailed = errors.New("serp: all providers failed")
)

// Kind classifies a provider failure.
type Kind int

const (
	KindNetwork Kind = iota
	KindAuth
	KindRateLimit
	KindTimeout
	KindMalformed
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth_error"
	case KindRateLimit:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	case KindEmpty:
		return "empty"
	default:
		return "network_error"
	}
}

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind carried by err, or KindNetwork when err is
// not a classified provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}

// classify maps transport and HTTP failures onto provider error kinds.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		return err
	}

	out := &Error{Provider: provider, Kind: KindNetwork, Err: err}

	var statusErr *httpclient.StatusError
	var decodeErr *httpclient.DecodeError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		out.StatusCode = statusErr.StatusCode
		switch {
		case Challenged(statusErr.StatusCode, statusErr.Header, statusErr.Body) != "":
			out.Kind = KindRateLimit
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			out.Kind = KindAuth
		case statusErr.StatusCode == http.StatusTooManyRequests:
			out.Kind = KindRateLimit
		}
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Kind = KindTimeout
	case errors.As(err, &decodeErr):
		out.Kind = KindMalformed
	}
	return out
}

func emptyResult(provider string) error {
	return &Error{Provider: provider, Kind: KindEmpty, Err: errors.New("no results")}
}

// ExtractDomain returns the host of rawURL without a leading "www.", or
// "unknown" when the URL cannot be parsed.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func clampResults(n int) int {
	if n <= 0 || n > 10 {
		return 10
	}
	return n
}
