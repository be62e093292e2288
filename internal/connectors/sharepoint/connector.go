// Package sharepoint implements the SharePoint connector over Microsoft
// Graph. Every listing is a two-step call: the configured site name is
// first resolved to a site id through the sites search endpoint, then the
// site's default document library is paged through $skiptoken.
package sharepoint

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/custodia-labs/syncbridge/internal/connectors"
	"github.com/custodia-labs/syncbridge/internal/connectors/microsoft"
	"github.com/custodia-labs/syncbridge/internal/connectors/oauth"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "sharepoint"

// ParamSiteName selects which SharePoint site to sync.
const ParamSiteName = "site_name"

// tokenScope is the OAuth scope requested on refresh.
const tokenScope = "sites.read.all offline_access"

const defaultTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector syncs a SharePoint site's document library.
type Connector struct {
	params    domain.ConnectorParameters
	token     string
	graphBase string
	tokenURL  string
	refresher *oauth.Refresher

	// siteID caches the resolved site so only the first listing pays
	// for the search round trip.
	siteID string
}

// New creates a SharePoint connector.
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

// SetParameters configures the connector and invalidates the cached site id.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
	c.token = params.String(oauth.KeyToken)
	c.siteID = ""
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData reports whether an access token and a site name are present.
func (c *Connector) HasAuthData() bool {
	return c.token != "" && c.params.String(ParamSiteName) != ""
}

// IsExternal reports false: documents are downloaded and uploaded as bytes.
func (c *Connector) IsExternal() bool {
	return false
}

// Folders lists document library folders, optionally filtered by name.
func (c *Connector) Folders(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listPage(ctx, query, "", true, "")
}

// Files lists document library files, optionally filtered by name.
func (c *Connector) Files(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listPage(ctx, query, "", false, "")
}

// LastModified lists each folder independently and keeps files modified
// after since.
func (c *Connector) LastModified(ctx context.Context, since string, folders []domain.SyncItem) ([]domain.SyncItem, error) {
	return connectors.ModifiedSince(ctx, folders, func(ctx context.Context, folder domain.SyncItem) ([]domain.SyncItem, error) {
		results, err := c.listPage(ctx, "", folder.OriginalID, false, "")
		if err != nil {
			return nil, err
		}
		items, err := driven.AllItems(ctx, results)
		if err != nil {
			return nil, err
		}
		return connectors.NewerThan(items, since), nil
	})
}

// Download streams the item through its pre-authenticated download URL.
func (c *Connector) Download(ctx context.Context, item domain.SyncItem) (io.ReadCloser, error) {
	uri := item.Metadata["downloadUrl"]
	if uri == "" {
		return nil, fmt.Errorf("item %s has no download url: %w", item.OriginalID, domain.ErrNotFound)
	}
	client := microsoft.NewClient(c.graphBase, c.token)
	return client.Stream(ctx, uri)
}

// Link is not supported: SharePoint content is always downloaded directly.
func (c *Connector) Link(_ context.Context, _ domain.SyncItem) (domain.Link, error) {
	return domain.Link{}, domain.ErrUnsupported
}

// RefreshAuthentication renews the token against the Microsoft token
// endpoint using the form-encoded refresh grant.
func (c *Connector) RefreshAuthentication(ctx context.Context) (bool, error) {
	ok, err := c.refresher.RefreshForm(ctx, c.params, c.tokenURL, tokenScope)
	c.token = c.params.String(oauth.KeyToken)
	return ok, err
}

func (c *Connector) resolveSite(ctx context.Context, client *microsoft.Client) (string, error) {
	if c.siteID != "" {
		return c.siteID, nil
	}
	name := c.params.String(ParamSiteName)
	if name == "" {
		return "", fmt.Errorf("%s parameter missing: %w", ParamSiteName, domain.ErrInvalidInput)
	}
	site, err := client.FindSite(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve site %q: %w", name, err)
	}
	c.siteID = site.ID
	return c.siteID, nil
}

func (c *Connector) listPage(
	ctx context.Context, query, folderID string, foldersOnly bool, skipToken string,
) (driven.SearchResults, error) {
	client := microsoft.NewClient(c.graphBase, c.token)
	siteID, err := c.resolveSite(ctx, client)
	if err != nil {
		return driven.SearchResults{}, err
	}

	path := fmt.Sprintf("/sites/%s/drive/root/children", siteID)
	if folderID != "" {
		path = fmt.Sprintf("/sites/%s/drive/items/%s/children", siteID, folderID)
	}
	params := url.Values{"top": {fmt.Sprint(microsoft.PageSize)}}
	if query != "" {
		path = fmt.Sprintf("/sites/%s/drive/root/search(q='%s')", siteID, url.PathEscape(query))
	}

	page, err := client.List(ctx, path, params, skipToken)
	if err != nil {
		return driven.SearchResults{}, err
	}

	items := make([]domain.SyncItem, 0, len(page.Value))
	for _, entry := range page.Value {
		if foldersOnly != (entry.Folder != nil) {
			continue
		}
		items = append(items, microsoft.MapItem(entry))
	}

	results := driven.SearchResults{Items: items}
	if next := microsoft.SkipToken(page.NextLink); next != "" {
		results.NextPage = func(ctx context.Context) (driven.SearchResults, error) {
			return c.listPage(ctx, query, folderID, foldersOnly, next)
		}
	}
	return results, nil
}
