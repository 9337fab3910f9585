package serp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProvider struct {
	name    string
	enabled bool
	hits    []Hit
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)}
}

func hitsFor(provider string) []Hit {
	return []Hit{{Title: "New board game announced", URL: "https://example.com/" + provider, Provider: provider}}
}

func TestRouter_FirstSuccessWins(t *testing.T) {
	serper := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper")}
	google := &fakeProvider{name: "google", enabled: true, hits: hitsFor("google")}

	r, err := NewRouter(RouterConfig{}, Route{serper, 10}, Route{google, 10})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	hits, err := r.Search(context.Background(), "board game news", Options{MaxResults: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Provider != "serper" {
		t.Errorf("expected serper hits, got %+v", hits)
	}
	if google.calls.Load() != 0 {
		t.Errorf("google must not be called after serper succeeded")
	}

	u := r.Usage()
	if u.Providers[0].Used != 1 || u.Providers[1].Used != 0 {
		t.Errorf("unexpected usage %+v", u.Providers)
	}
}

func TestRouter_FallsThroughOnFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hits []Hit
	}{
		{"auth", &Error{Provider: "serper", Kind: KindAuth, StatusCode: 401}, nil},
		{"rate limit", &Error{Provider: "serper", Kind: KindRateLimit, StatusCode: 429}, nil},
		{"network", errors.New("connection reset"), nil},
		{"empty", nil, []Hit{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serper := &fakeProvider{name: "serper", enabled: true, err: tt.err, hits: tt.hits}
			google := &fakeProvider{name: "google", enabled: true, hits: hitsFor("google")}

			r, _ := NewRouter(RouterConfig{}, Route{serper, 10}, Route{google, 10})
			hits, err := r.Search(context.Background(), "q", Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hits[0].Provider != "google" {
				t.Errorf("expected google hits, got %+v", hits)
			}

			u := r.Usage()
			if u.Providers[0].Used != 0 {
				t.Errorf("failed calls must not count against quota, got %d", u.Providers[0].Used)
			}
			if u.Providers[1].Used != 1 {
				t.Errorf("expected google usage 1, got %d", u.Providers[1].Used)
			}
		})
	}
}

func TestRouter_QuotaExhausted(t *testing.T) {
	serper := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper")}
	google := &fakeProvider{name: "google", enabled: false}

	r, _ := NewRouter(RouterConfig{}, Route{serper, 1}, Route{google, 100})

	if _, err := r.Search(context.Background(), "first", Options{}); err != nil {
		t.Fatalf("first search: %v", err)
	}

	_, err := r.Search(context.Background(), "second", Options{})
	if !errors.Is(err, ErrProvidersExhausted) {
		t.Fatalf("expected ErrProvidersExhausted, got %v", err)
	}
	if serper.calls.Load() != 1 {
		t.Errorf("exhausted provider must not be called, calls=%d", serper.calls.Load())
	}
	if google.calls.Load() != 0 {
		t.Errorf("disabled provider must not be called")
	}
}

func TestRouter_NoProviders(t *testing.T) {
	r, _ := NewRouter(RouterConfig{}, Route{&fakeProvider{name: "serper"}, 10})

	if r.Available() {
		t.Errorf("router with only disabled providers must not be available")
	}
	if _, err := r.Search(context.Background(), "q", Options{}); !errors.Is(err, ErrProvidersExhausted) {
		t.Errorf("expected ErrProvidersExhausted, got %v", err)
	}
}

func TestRouter_AllProvidersFailed(t *testing.T) {
	serper := &fakeProvider{name: "serper", enabled: true, err: &Error{Provider: "serper", Kind: KindAuth}}
	google := &fakeProvider{name: "google", enabled: true, err: &Error{Provider: "google", Kind: KindMalformed}}

	r, _ := NewRouter(RouterConfig{}, Route{serper, 10}, Route{google, 10})
	_, err := r.Search(context.Background(), "q", Options{})

	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected provider error in chain, got %v", err)
	}
	if pe.Provider != "serper" || pe.Kind != KindAuth {
		t.Errorf("expected first failure to be serper auth, got %+v", pe)
	}
}

func TestRouter_Timeout(t *testing.T) {
	slow := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper"), delay: time.Second}
	google := &fakeProvider{name: "google", enabled: true, hits: hitsFor("google")}

	r, _ := NewRouter(RouterConfig{Timeout: 20 * time.Millisecond}, Route{slow, 10}, Route{google, 10})

	start := time.Now()
	hits, err := r.Search(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits[0].Provider != "google" {
		t.Errorf("expected fallback to google after timeout")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout was not enforced")
	}
}

func TestRouter_TimeoutKind(t *testing.T) {
	slow := &fakeProvider{name: "serper", enabled: true, delay: time.Second}
	r, _ := NewRouter(RouterConfig{Timeout: 10 * time.Millisecond}, Route{slow, 10})

	_, err := r.Search(context.Background(), "q", Options{})
	if KindOf(err) != KindTimeout {
		t.Errorf("expected timeout kind, got %v", err)
	}
}

func TestRouter_Cache(t *testing.T) {
	clock := newClock()
	serper := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper")}

	r, _ := NewRouter(RouterConfig{Now: clock.Now, CacheTTL: 5 * time.Minute}, Route{serper, 10})
	ctx := context.Background()
	opts := Options{MaxResults: 10, DateRestrict: "w1"}

	for i := 0; i < 3; i++ {
		if _, err := r.Search(ctx, "q", opts); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if serper.calls.Load() != 1 {
		t.Errorf("expected cached answers, provider called %d times", serper.calls.Load())
	}

	// A different option set is a different cache entry.
	if _, err := r.Search(ctx, "q", Options{MaxResults: 10, DateRestrict: "m1"}); err != nil {
		t.Fatal(err)
	}
	if serper.calls.Load() != 2 {
		t.Errorf("expected cache miss for new options")
	}

	clock.Advance(6 * time.Minute)
	if _, err := r.Search(ctx, "q", opts); err != nil {
		t.Fatal(err)
	}
	if serper.calls.Load() != 3 {
		t.Errorf("expected expired entry to be refetched")
	}
	if r.Usage().Providers[0].Used != 3 {
		t.Errorf("cache hits must not consume quota")
	}
}

func TestRouter_CacheReturnsCopy(t *testing.T) {
	serper := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper")}
	r, _ := NewRouter(RouterConfig{}, Route{serper, 10})

	first, _ := r.Search(context.Background(), "q", Options{})
	first[0].Title = "mutated"

	second, _ := r.Search(context.Background(), "q", Options{})
	if second[0].Title == "mutated" {
		t.Errorf("cached hits must not alias caller slices")
	}
}

func TestRouter_DailyReset(t *testing.T) {
	clock := newClock()
	serper := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper")}

	r, _ := NewRouter(RouterConfig{Now: clock.Now, CacheTTL: time.Millisecond}, Route{serper, 1})
	ctx := context.Background()

	if _, err := r.Search(ctx, "a", Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Search(ctx, "b", Options{}); !errors.Is(err, ErrProvidersExhausted) {
		t.Fatalf("expected exhaustion before reset, got %v", err)
	}

	clock.Advance(16 * time.Hour) // crosses midnight UTC
	if _, err := r.Search(ctx, "b", Options{}); err != nil {
		t.Fatalf("expected quota reset on new UTC day, got %v", err)
	}
	if got := r.Usage().ResetDate; got != "2024-05-11" {
		t.Errorf("expected reset date 2024-05-11, got %s", got)
	}
}

func TestRouter_InvalidConfig(t *testing.T) {
	p := &fakeProvider{name: "serper", enabled: true}

	if _, err := NewRouter(RouterConfig{}, Route{p, 0}); err == nil {
		t.Errorf("expected error for zero quota")
	}
	if _, err := NewRouter(RouterConfig{}, Route{p, 1}, Route{p, 1}); err == nil {
		t.Errorf("expected error for duplicate provider")
	}
	if _, err := NewRouter(RouterConfig{}, Route{nil, 1}); err == nil {
		t.Errorf("expected error for nil provider")
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	serper := &fakeProvider{name: "serper", enabled: true, hits: hitsFor("serper")}
	google := &fakeProvider{name: "google", enabled: true, err: &Error{Provider: "google", Kind: KindAuth}}
	rss := &fakeProvider{name: "rss"}

	r, _ := NewRouter(RouterConfig{}, Route{serper, 10}, Route{google, 10}, Route{rss, 10})
	res := r.HealthCheck(context.Background())

	if err, ok := res["serper"]; !ok || err != nil {
		t.Errorf("expected healthy serper, got %v", err)
	}
	if KindOf(res["google"]) != KindAuth {
		t.Errorf("expected google auth failure, got %v", res["google"])
	}
	if _, ok := res["rss"]; ok {
		t.Errorf("disabled providers must not be probed")
	}
}

func TestRouter_ContextCanceled(t *testing.T) {
	serper := &fakeProvider{name: "serper", enabled: true, delay: time.Second}
	google := &fakeProvider{name: "google", enabled: true, hits: hitsFor("google")}

	r, _ := NewRouter(RouterConfig{}, Route{serper, 10}, Route{google, 10})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := r.Search(ctx, "q", Options{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected caller deadline to stop the search, got %v", err)
	}
	if google.calls.Load() != 0 {
		t.Errorf("no further providers should be tried once the caller gave up")
	}
}
