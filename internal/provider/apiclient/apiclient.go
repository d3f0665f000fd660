// Package apiclient is the HTTP layer shared by the metadata providers. It
// applies the socket timeout, user agent, rate limit and retry policy to every
// request so individual providers only build URLs and parse bodies.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tagmatch/internal/metadata"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every request so one unreachable catalog cannot stall a search.
const DefaultTimeout = 5 * time.Second

const (
	defaultUserAgent = "tagmatch/1.0"
	maxBodySize      = 8 << 20
	maxErrorBody     = 512
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	UserAgent         string
	Retry             metadata.RetryPolicy
	RequestsPerSecond float64
	// Authorize may decorate each attempt, e.g. with a bearer token.
	Authorize func(ctx context.Context, req *http.Request) error
}

// Client performs rate limited, retried HTTP requests.
type Client struct {
	httpClient *http.Client
	userAgent  string
	retry      metadata.RetryPolicy
	limiter    *rate.Limiter
	authorize  func(ctx context.Context, req *http.Request) error
}

// StatusError is returned for non-2xx responses. It is never retried.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Code, e.Body)
}

// New creates a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := &Client{
		httpClient: httpClient,
		userAgent:  ua,
		retry:      opts.Retry,
		authorize:  opts.Authorize,
	}
	if c.retry.MaxAttempts < 1 {
		c.retry = metadata.NoRetry
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON sends payload as a JSON body and returns the raw response.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	header := http.Header{"Content-Type": {"application/json"}}
	return c.Do(ctx, http.MethodPost, url, data, header)
}

// Do sends one logical request, re-issuing it per the retry policy.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	var out []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.attempt(ctx, method, url, body, header)
		return err
	})
	return out, err
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.authorize != nil {
		if err := c.authorize(ctx, req); err != nil {
			return nil, fmt.Errorf("authorization failed: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := data
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode, URL: url, Body: string(snippet)}
	}
	return data, nil
}
