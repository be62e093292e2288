// Package onedrive implements the OneDrive connector over Microsoft Graph.
// It is link-only: items are handed to the destination as pre-authenticated
// download URLs with a bearer header instead of being downloaded here.
package onedrive

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/custodia-labs/syncbridge/internal/connectors/microsoft"
	"github.com/custodia-labs/syncbridge/internal/connectors/oauth"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "onedrive"

// tokenScope is the OAuth scope requested on refresh.
const tokenScope = "files.read offline_access"

const defaultTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector syncs file links from a personal OneDrive.
type Connector struct {
	params    domain.ConnectorParameters
	token     string
	graphBase string
	tokenURL  string
	refresher *oauth.Refresher
}

// New creates a OneDrive connector.
func New() driven.Connector {
	return &Connector{
		graphBase: microsoft.DefaultGraphBase,
		tokenURL:  defaultTokenURL,
		refresher: oauth.NewRefresher(),
	}
}

// NewWithBaseURLs creates a connector targeting custom endpoints.
// Used by tests.
func NewWithBaseURLs(graphBase, tokenURL string) *Connector {
	return &Connector{
		graphBase: graphBase,
		tokenURL:  tokenURL,
		refresher: oauth.NewRefresher(),
	}
}

// SetParameters configures the connector from its OAuth parameter bag.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
	c.token = params.String(oauth.KeyToken)
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData reports whether an access token is present.
func (c *Connector) HasAuthData() bool {
	return c.token != ""
}

// IsExternal reports true: the destination ingests links, not bytes.
func (c *Connector) IsExternal() bool {
	return true
}

// Folders is not supported for OneDrive.
func (c *Connector) Folders(_ context.Context, _ string) (driven.SearchResults, error) {
	return driven.SearchResults{}, domain.ErrUnsupported
}

// Files lists files from the drive root. A query switches to Graph search.
func (c *Connector) Files(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listPage(ctx, query, "")
}

// LastModified is not supported: link-only sources re-list on every pass.
func (c *Connector) LastModified(_ context.Context, _ string, _ []domain.SyncItem) ([]domain.SyncItem, error) {
	return nil, domain.ErrUnsupported
}

// Download is not supported: content is referenced, never fetched here.
func (c *Connector) Download(_ context.Context, _ domain.SyncItem) (io.ReadCloser, error) {
	return nil, domain.ErrUnsupported
}

// Link returns the pre-authenticated download URL with a bearer header.
func (c *Connector) Link(_ context.Context, item domain.SyncItem) (domain.Link, error) {
	uri := item.Metadata["downloadUrl"]
	if uri == "" {
		return domain.Link{}, fmt.Errorf("item %s has no download url: %w", item.OriginalID, domain.ErrNotFound)
	}
	return domain.Link{
		URI:          uri,
		ExtraHeaders: map[string]string{"Authorization": "Bearer " + c.token},
	}, nil
}

// RefreshAuthentication renews the token against the Microsoft token
// endpoint using the form-encoded refresh grant.
func (c *Connector) RefreshAuthentication(ctx context.Context) (bool, error) {
	ok, err := c.refresher.RefreshForm(ctx, c.params, c.tokenURL, tokenScope)
	c.token = c.params.String(oauth.KeyToken)
	return ok, err
}

func (c *Connector) listPage(ctx context.Context, query, skipToken string) (driven.SearchResults, error) {
	client := microsoft.NewClient(c.graphBase, c.token)

	path := "/me/drive/root/children"
	params := url.Values{
		"top":    {fmt.Sprint(microsoft.PageSize)},
		"filter": {"file ne null"},
	}
	if query != "" {
		path = fmt.Sprintf("/me/drive/root/search(q='%s')", url.PathEscape(query))
		params = url.Values{"top": {fmt.Sprint(microsoft.PageSize)}}
	}

	page, err := client.List(ctx, path, params, skipToken)
	if err != nil {
		return driven.SearchResults{}, err
	}

	items := make([]domain.SyncItem, 0, len(page.Value))
	for _, entry := range page.Value {
		if entry.Folder != nil {
			continue
		}
		items = append(items, microsoft.MapItem(entry))
	}

	results := driven.SearchResults{Items: items}
	if next := microsoft.SkipToken(page.NextLink); next != "" {
		results.NextPage = func(ctx context.Context) (driven.SearchResults, error) {
			return c.listPage(ctx, query, next)
		}
	}
	return results, nil
}
