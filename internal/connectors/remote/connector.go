// Package remote implements the dynamic connector boundary. Instead of
// loading code, the engine reads a manifest of connector endpoints and
// registers a proxy for each one; the proxy forwards every operation over
// a narrow JSON-over-HTTP contract to the external connector process.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/custodia-labs/syncbridge/internal/connectors/httpclient"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector proxies operations to an external connector endpoint.
type Connector struct {
	id       string
	endpoint string
	external bool
	params   domain.ConnectorParameters
	client   *httpclient.Client
}

// NewConnector creates a proxy for one manifest entry.
func NewConnector(entry ManifestEntry) *Connector {
	return &Connector{
		id:       entry.ID,
		endpoint: entry.Endpoint,
		external: entry.External,
		client:   httpclient.New(),
	}
}

// ID returns the connector identifier declared in the manifest.
func (c *Connector) ID() string {
	return c.id
}

// Factory returns a factory producing fresh proxies for the same manifest
// entry, so the registry treats dynamic connectors like built-in ones.
func (c *Connector) Factory() driven.ConnectorFactory {
	entry := ManifestEntry{ID: c.id, Endpoint: c.endpoint, External: c.external}
	return func() driven.Connector { return NewConnector(entry) }
}

// SetParameters stores the parameter bag forwarded with every call.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData reports true: credential checks live on the remote side.
func (c *Connector) HasAuthData() bool {
	return true
}

// IsExternal reports whether the manifest declared the connector link-only.
func (c *Connector) IsExternal() bool {
	return c.external
}

// request is the body sent with every proxied operation.
type request struct {
	Parameters domain.ConnectorParameters `json:"parameters"`
	Query      string                     `json:"query,omitempty"`
	Since      string                     `json:"since,omitempty"`
	OriginalID string                     `json:"originalId,omitempty"`
}

type itemsResponse struct {
	Items []domain.SyncItem `json:"items"`
}

// Folders asks the remote endpoint for its folder listing.
func (c *Connector) Folders(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listCall(ctx, "/folders", request{Parameters: c.params, Query: query})
}

// Files asks the remote endpoint for its file listing.
func (c *Connector) Files(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listCall(ctx, "/files", request{Parameters: c.params, Query: query})
}

// LastModified asks the remote endpoint for items modified after since.
func (c *Connector) LastModified(ctx context.Context, since string, _ []domain.SyncItem) ([]domain.SyncItem, error) {
	results, err := c.listCall(ctx, "/lastModified", request{Parameters: c.params, Since: since})
	if err != nil {
		return nil, err
	}
	return driven.AllItems(ctx, results)
}

// Download streams item bytes from the remote endpoint.
func (c *Connector) Download(ctx context.Context, item domain.SyncItem) (io.ReadCloser, error) {
	endpoint := c.endpoint + "/download?" + url.Values{"originalId": {item.OriginalID}}.Encode()
	return c.client.Download(ctx, "GET", endpoint, nil)
}

// Link asks the remote endpoint for the item's external link.
func (c *Connector) Link(ctx context.Context, item domain.SyncItem) (domain.Link, error) {
	var link domain.Link
	body := request{Parameters: c.params, OriginalID: item.OriginalID}
	if err := c.client.PostJSON(ctx, c.endpoint+"/link", body, nil, &link); err != nil {
		return domain.Link{}, err
	}
	if link.URI == "" {
		return domain.Link{}, fmt.Errorf("connector %s returned an empty link: %w", c.id, domain.ErrInvalidInput)
	}
	return link, nil
}

// RefreshAuthentication is a no-op: remote connectors manage their own
// credentials.
func (c *Connector) RefreshAuthentication(_ context.Context) (bool, error) {
	return true, nil
}

func (c *Connector) listCall(ctx context.Context, path string, body request) (driven.SearchResults, error) {
	var out itemsResponse
	if err := c.client.PostJSON(ctx, c.endpoint+path, body, nil, &out); err != nil {
		return driven.SearchResults{}, err
	}

	items := make([]domain.SyncItem, 0, len(out.Items))
	for _, item := range out.Items {
		if err := validateItem(c.id, item); err != nil {
			return driven.SearchResults{}, err
		}
		if item.Status == "" {
			item.Status = domain.StatusPending
		}
		items = append(items, item)
	}
	return driven.SearchResults{Items: items}, nil
}

// validateItem rejects malformed remote responses before they reach the
// pipeline.
func validateItem(id string, item domain.SyncItem) error {
	if item.OriginalID == "" || item.Title == "" {
		return fmt.Errorf("connector %s returned an item without originalId or title: %w", id, domain.ErrInvalidInput)
	}
	return nil
}
