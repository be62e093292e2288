// Package kb is the REST client for the destination knowledge base. It
// retries transport failures on a short backoff schedule; HTTP error
// statuses are never retried, they are mapped to the engine's error
// taxonomy and surfaced immediately.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// backoffSchedule spaces the retries after a transport failure.
var backoffSchedule = []time.Duration{time.Second, 5 * time.Second, 20 * time.Second}

// Ensure Client implements the interface.
var _ driven.KnowledgeBox = (*Client)(nil)

// Client talks to one knowledge box.
type Client struct {
	cfg  domain.DestinationConfig
	http *http.Client

	// sleep is swapped out by tests to skip the real backoff.
	sleep func(context.Context, time.Duration) error
}

// New creates a knowledge-box client for one destination.
func New(cfg domain.DestinationConfig) *Client {
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: 60 * time.Second},
		sleep: sleepCtx,
	}
}

// Factory adapts New to the driven.KnowledgeBoxFactory signature.
func Factory(cfg domain.DestinationConfig) driven.KnowledgeBox {
	return New(cfg)
}

// ResourceBySlug looks up an existing resource by its dedup slug.
func (c *Client) ResourceBySlug(ctx context.Context, slug string) (*driven.Resource, error) {
	var out struct {
		UUID string `json:"uuid"`
	}
	endpoint := fmt.Sprintf("%s/kb/%s/slug/%s", c.base(), c.cfg.KnowledgeBox, slug)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &driven.Resource{ID: out.UUID, Slug: slug}, nil
}

// CreateResource creates an empty resource identified by slug.
func (c *Client) CreateResource(ctx context.Context, slug, title string) (*driven.Resource, error) {
	var out struct {
		UUID string `json:"uuid"`
	}
	endpoint := fmt.Sprintf("%s/kb/%s/resources", c.base(), c.cfg.KnowledgeBox)
	body := map[string]any{"slug": slug, "title": title}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return nil, err
	}
	return &driven.Resource{ID: out.UUID, Slug: slug}, nil
}

// UploadFile attaches content to a resource as its file field. The body is
// buffered so transport retries can resend it.
func (c *Client) UploadFile(ctx context.Context, res *driven.Resource, filename, contentType string, body io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create multipart: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart: %w", err)
	}

	endpoint := fmt.Sprintf("%s/kb/%s/resource/%s/file/file/upload", c.base(), c.cfg.KnowledgeBox, res.ID)
	resp, err := c.doRetry(ctx, http.MethodPost, endpoint, buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CreateLinkResource creates or updates a resource whose content is a link
// the destination fetches itself.
func (c *Client) CreateLinkResource(ctx context.Context, slug, title string, link domain.Link) error {
	endpoint := fmt.Sprintf("%s/kb/%s/resources", c.base(), c.cfg.KnowledgeBox)
	body := map[string]any{
		"slug":  slug,
		"title": title,
		"links": map[string]any{
			"link": map[string]any{
				"uri":     link.URI,
				"headers": link.ExtraHeaders,
			},
		},
	}
	return c.doJSON(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *Client) base() string {
	return strings.TrimSuffix(c.cfg.Endpoint, "/")
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var encoded []byte
	contentType := ""
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		contentType = "application/json"
	}

	resp, err := c.doRetry(ctx, method, endpoint, encoded, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

// doRetry sends the request, retrying transport errors per the backoff
// schedule. HTTP statuses are final on the first response.
func (c *Client) doRetry(ctx context.Context, method, endpoint string, body []byte, contentType string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.doOnce(ctx, method, endpoint, body, contentType)
		if err == nil {
			return resp, nil
		}
		if !isTransport(err) || attempt >= len(backoffSchedule) {
			return nil, err
		}

		lastErr = err
		logger.Warn("destination call failed, retrying in %s: %v", backoffSchedule[attempt], lastErr)
		if err := c.sleep(ctx, backoffSchedule[attempt]); err != nil {
			return nil, err
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("%s %s: %w", method, endpoint, err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", endpoint, domain.ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", endpoint, domain.ErrUnauthorized)
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(raw)}
	}
}

// transportError marks failures that never reached the destination and are
// therefore safe to retry.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
