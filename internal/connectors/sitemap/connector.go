// Package sitemap implements the sitemap connector. It does no real
// listing: Files synthesises a single item for the sitemap URL itself, and
// the destination fetches and expands the sitemap downstream.
package sitemap

import (
	"context"
	"io"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "sitemap"

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector exposes a sitemap URL as a single link-only item.
type Connector struct {
	params domain.ConnectorParameters
	url    string
}

// New creates a sitemap connector.
func New() driven.Connector {
	return &Connector{}
}

// SetParameters configures the connector. The only parameter is "sitemap",
// the URL of the sitemap.xml.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
	c.url = params.String("sitemap")
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData reports whether a sitemap URL is configured; sitemaps need no
// credentials beyond that.
func (c *Connector) HasAuthData() bool {
	return c.url != ""
}

// IsExternal reports true: the destination fetches the sitemap itself.
func (c *Connector) IsExternal() bool {
	return true
}

// Folders is not supported: a sitemap has no hierarchy.
func (c *Connector) Folders(_ context.Context, _ string) (driven.SearchResults, error) {
	return driven.SearchResults{}, domain.ErrUnsupported
}

// Files returns exactly one item representing the sitemap URL.
func (c *Connector) Files(_ context.Context, _ string) (driven.SearchResults, error) {
	return driven.SearchResults{Items: c.items()}, nil
}

// LastModified returns the sitemap item unconditionally: the destination
// decides what changed when it re-fetches the sitemap. The orchestrator
// dedups by OriginalID, so the item is only queued once.
func (c *Connector) LastModified(_ context.Context, _ string, _ []domain.SyncItem) ([]domain.SyncItem, error) {
	return c.items(), nil
}

// Download is not supported: content is resolved downstream from the URL.
func (c *Connector) Download(_ context.Context, _ domain.SyncItem) (io.ReadCloser, error) {
	return nil, domain.ErrUnsupported
}

// Link returns the raw sitemap URI.
func (c *Connector) Link(_ context.Context, item domain.SyncItem) (domain.Link, error) {
	return domain.Link{URI: item.OriginalID, ExtraHeaders: map[string]string{}}, nil
}

// RefreshAuthentication is a no-op success: there is nothing to refresh.
func (c *Connector) RefreshAuthentication(_ context.Context) (bool, error) {
	return true, nil
}

func (c *Connector) items() []domain.SyncItem {
	return []domain.SyncItem{{
		Title:      "Sitemap",
		OriginalID: c.url,
		Metadata:   map[string]string{},
		Status:     domain.StatusPending,
	}}
}
