package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent identifies outbound API calls.
const DefaultUserAgent = "boardnews/1.0 (+https://github.com/yolubot/boardnews)"

// maxErrorBody caps how much of a failed response is kept for block-page
// detection. Error() prints at most maxErrorExcerpt bytes of it.
const (
	maxErrorBody    = 8 << 10
	maxErrorExcerpt = 256
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// Transport is optional; tests inject httptest transports here.
	Transport http.RoundTripper
}

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	body := e.Body
	if len(body) > maxErrorExcerpt {
		body = body[:maxErrorExcerpt] + "..."
	}
	return fmt.Sprintf("unexpected status %s: %s", e.Status, body)
}

// Client wraps a standard http.Client with a fixed timeout and User-Agent and
// JSON helpers shared by the search providers.
type Client struct {
	http      *http.Client
	userAgent string
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := &http.Client{Timeout: cfg.Timeout}
	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{http: c, userAgent: cfg.UserAgent}
}

// Do executes req bound to ctx. Non-2xx responses are closed and reported as
// *StatusError; the caller owns the body of successful responses.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	req = req.Clone(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}

// GetJSON issues a GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Accept", "application/json")

	return c.doJSON(ctx, req, v)
}

// PostJSON marshals payload, POSTs it and decodes the JSON response into v.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("httpclient: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.doJSON(ctx, req, v)
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, v any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// DecodeError marks a response whose body could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "httpclient: decode response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }
