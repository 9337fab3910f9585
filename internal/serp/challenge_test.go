package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yolubot/boardnews/pkg/httpclient"
)

func TestChallenged(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   string
	}{
		{"ok response", 200, nil, "cf-turnstile", ""},
		{"plain forbidden", 403, http.Header{"Server": {"nginx"}}, `{"error":"invalid key"}`, ""},
		{"google sorry page", 429, nil, `<a href="https://www.google.com/sorry/index?continue=...">`, "google"},
		{"google unusual traffic", 503, nil, "Our systems have detected unusual traffic from your computer network.", "google"},
		{"cloudflare header", 403, http.Header{"Server": {"cloudflare"}, "Cf-Mitigated": {"challenge"}}, "", "cloudflare"},
		{"cloudflare body", 503, nil, "<html>... cf-turnstile ...</html>", "cloudflare"},
		{"cloudflare server only", 403, http.Header{"Server": {"cloudflare"}}, `{"message":"bad key"}`, ""},
		{"akamai reference", 403, nil, "Access Denied... Reference #123.456", "akamai"},
		{"akamai header", 403, http.Header{"Server": {"AkamaiGHost"}}, "Access Denied", "akamai"},
		{"recaptcha", 403, nil, `<div class="g-recaptcha"></div>`, "captcha"},
		{"captcha on 500", 500, nil, "g-recaptcha", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			if got := Challenged(tt.status, header, tt.body); got != tt.want {
				t.Errorf("Challenged() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify_ChallengeIsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Our systems have detected unusual traffic from your computer network."))
	}))
	defer srv.Close()

	n := NewNewsRSS(true, nil)
	n.Endpoint = srv.URL

	_, err := n.Search(context.Background(), "board game", Options{})
	if KindOf(err) != KindRateLimit {
		t.Fatalf("expected rate limit kind for a challenge page, got %v", err)
	}

	var pe *Error
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403 to be kept, got %+v", pe)
	}
}

func TestClassify_ForbiddenIsAuth(t *testing.T) {
	err := classify("serper", &httpclient.StatusError{StatusCode: 403, Status: "403 Forbidden", Header: http.Header{}, Body: `{"message":"Invalid API key"}`})
	if KindOf(err) != KindAuth {
		t.Errorf("expected auth kind, got %v", KindOf(err))
	}
}
