// Package fetch is the outbound HTTP layer shared by the provider handlers
// and the download executor: browser-like headers, per-host politeness rate
// limiting, and a JSON decoding helper for provider APIs.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxJSONBody bounds provider API responses; anything bigger is not a
// metadata document.
const maxJSONBody = 4 << 20

// StatusError reports a non-200 response where a decoded body was required.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.Status, e.URL)
}

type Client struct {
	httpClient *http.Client
	limiter    *hostLimiter
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient swaps the underlying client, e.g. for a redirect-capturing
// transport in tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithPerHostRate sets the politeness limit applied to each distinct host.
func WithPerHostRate(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = newHostLimiter(limit, burst) }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    newHostLimiter(rate.Limit(4), 4),
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestOption mutates a request before it is sent.
type RequestOption func(*http.Request)

func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) { req.Header.Set(key, value) }
}

func WithReferer(referer string) RequestOption {
	return WithHeader("Referer", referer)
}

func WithBearerToken(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// Get issues a GET with browser headers, waiting on the per-host limiter
// first. Redirects are followed; resp.Request.URL carries the final URL.
// The response is returned whatever its status code.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.decorate(req)
	for _, opt := range opts {
		opt(req)
	}
	if err := c.limiter.wait(ctx, req.URL.Hostname()); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// GetJSON decodes a 200 JSON response into out; any other status is a
// *StatusError so API cascades can fall through to their next tier.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any, opts ...RequestOption) error {
	opts = append(opts, WithHeader("Accept", "application/json"))
	resp, err := c.Get(ctx, rawURL, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, URL: rawURL}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBody)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}
