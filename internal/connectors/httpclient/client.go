// Package httpclient is the REST client shared by the API connectors.
// It applies a conservative default timeout, a client-side rate limit, and
// the uniform status mapping every connector relies on: 401 becomes
// domain.ErrUnauthorized (driving the token refresh path), any other
// non-2xx becomes a domain.ProviderError carrying the response body.
// Requests are never retried on 4xx.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

const (
	// DefaultTimeout bounds every outbound provider call.
	DefaultTimeout = 30 * time.Second

	// requestsPerSecond is the client-side rate cap per provider client.
	requestsPerSecond = 10
)

// Client wraps http.Client with rate limiting and uniform error mapping.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHeader sets a header applied to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// New creates a provider REST client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, "", headers, out)
}

// PostJSON performs a POST with a JSON body and decodes the response into out.
// A nil body sends an empty JSON object, which some providers require.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string, out any) error {
	if body == nil {
		body = map[string]any{}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, encoded, "application/json", headers, out)
}

// PostForm performs a POST with a form-encoded body and decodes the response.
func (c *Client) PostForm(ctx context.Context, url, form string, headers map[string]string, out any) error {
	return c.doJSON(ctx, http.MethodPost, url, []byte(form), "application/x-www-form-urlencoded", headers, out)
}

// Download performs a request and returns the raw body for streaming.
// The caller must close the reader.
func (c *Client) Download(ctx context.Context, method, url string, headers map[string]string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, method, url, nil, "", headers)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) doJSON(
	ctx context.Context, method, url string, body []byte, contentType string, headers map[string]string, out any,
) error {
	resp, err := c.do(ctx, method, url, body, contentType, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(
	ctx context.Context, method, url string, body []byte, contentType string, headers map[string]string,
) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%s: %w", url, domain.ErrUnauthorized)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, &domain.ProviderError{
		StatusCode: resp.StatusCode,
		Endpoint:   url,
		Body:       string(raw),
	}
}
