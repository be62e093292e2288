// Package confluence implements the Confluence Cloud connector. It
// authenticates with basic auth (account email plus API token), treats
// spaces as folders, and finds content through CQL searches with
// offset-based pagination. Incremental listings truncate the watermark to
// minute precision because CQL's lastModified operator accepts nothing
// finer.
package confluence

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/custodia-labs/syncbridge/internal/connectors"
	"github.com/custodia-labs/syncbridge/internal/connectors/httpclient"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "confluence"

// Connector parameters.
const (
	ParamURL   = "url"
	ParamUser  = "user"
	ParamToken = "token"
)

// PageSize is the listing page size.
const PageSize = 50

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector syncs pages and attachments from a Confluence site.
type Connector struct {
	params domain.ConnectorParameters
}

// New creates a Confluence connector.
func New() driven.Connector {
	return &Connector{}
}

// SetParameters configures the connector: "url" is the site base URL,
// "user" the account email, "token" the API token.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData reports whether the site URL and credentials are present.
func (c *Connector) HasAuthData() bool {
	return c.params.String(ParamURL) != "" &&
		c.params.String(ParamUser) != "" &&
		c.params.String(ParamToken) != ""
}

// IsExternal reports false: content is downloaded and uploaded as bytes.
func (c *Connector) IsExternal() bool {
	return false
}

// Folders lists spaces, optionally filtered by name.
func (c *Connector) Folders(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.spacesPage(ctx, query, 0)
}

// Files searches content across the site. Without a query it lists every
// page; with one it runs a CQL text search.
func (c *Connector) Files(ctx context.Context, query string) (driven.SearchResults, error) {
	cql := "type = page"
	if query != "" {
		cql = fmt.Sprintf(`text ~ "%s"`, query)
	}
	return c.searchPage(ctx, cql, 0)
}

// LastModified searches each space for content modified after since.
// The watermark is truncated to minute precision for CQL.
func (c *Connector) LastModified(ctx context.Context, since string, folders []domain.SyncItem) ([]domain.SyncItem, error) {
	watermark := cqlTimestamp(since)
	return connectors.ModifiedSince(ctx, folders, func(ctx context.Context, folder domain.SyncItem) ([]domain.SyncItem, error) {
		cql := fmt.Sprintf(`space = "%s" and lastModified > "%s"`, folder.OriginalID, watermark)
		results, err := c.searchPage(ctx, cql, 0)
		if err != nil {
			return nil, err
		}
		return driven.AllItems(ctx, results)
	})
}

// Download fetches attachment binaries through their download link and
// pages as their storage-format HTML body.
func (c *Connector) Download(ctx context.Context, item domain.SyncItem) (io.ReadCloser, error) {
	if link := item.Metadata["downloadLink"]; link != "" {
		return c.client().Download(ctx, "GET", c.base()+link, nil)
	}

	var out struct {
		Body struct {
			Storage struct {
				Value string `json:"value"`
			} `json:"storage"`
		} `json:"body"`
	}
	endpoint := fmt.Sprintf("%s/rest/api/content/%s?expand=body.storage", c.base(), item.OriginalID)
	if err := c.client().GetJSON(ctx, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(out.Body.Storage.Value)), nil
}

// Link is not supported: Confluence content is always downloaded directly.
func (c *Connector) Link(_ context.Context, _ domain.SyncItem) (domain.Link, error) {
	return domain.Link{}, domain.ErrUnsupported
}

// RefreshAuthentication clears the API token: basic auth tokens cannot be
// renewed, a rejected token means the user must issue a new one.
func (c *Connector) RefreshAuthentication(_ context.Context) (bool, error) {
	c.params[ParamToken] = ""
	return false, nil
}

func (c *Connector) base() string {
	return strings.TrimSuffix(c.params.String(ParamURL), "/")
}

func (c *Connector) client() *httpclient.Client {
	creds := c.params.String(ParamUser) + ":" + c.params.String(ParamToken)
	encoded := base64.StdEncoding.EncodeToString([]byte(creds))
	return httpclient.New(httpclient.WithHeader("Authorization", "Basic "+encoded))
}

type contentResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Links struct {
		WebUI    string `json:"webui"`
		Download string `json:"download"`
	} `json:"_links"`
	Version struct {
		When string `json:"when"`
	} `json:"version"`
}

type searchResponse struct {
	Results []contentResult `json:"results"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

func (c *Connector) searchPage(ctx context.Context, cql string, start int) (driven.SearchResults, error) {
	params := url.Values{
		"cql":    {cql},
		"expand": {"version"},
		"limit":  {fmt.Sprint(PageSize)},
		"start":  {fmt.Sprint(start)},
	}
	endpoint := c.base() + "/rest/api/content/search?" + params.Encode()

	var out searchResponse
	if err := c.client().GetJSON(ctx, endpoint, nil, &out); err != nil {
		return driven.SearchResults{}, err
	}

	items := make([]domain.SyncItem, 0, len(out.Results))
	for _, result := range out.Results {
		items = append(items, mapContent(result))
	}

	results := driven.SearchResults{Items: items}
	if out.Links.Next != "" {
		next := start + PageSize
		results.NextPage = func(ctx context.Context) (driven.SearchResults, error) {
			return c.searchPage(ctx, cql, next)
		}
	}
	return results, nil
}

type spaceResponse struct {
	Results []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"results"`
	Links struct {
		Next string `json:"next"`
	} `json:"_links"`
}

func (c *Connector) spacesPage(ctx context.Context, query string, start int) (driven.SearchResults, error) {
	endpoint := fmt.Sprintf("%s/rest/api/space?limit=%d&start=%d", c.base(), PageSize, start)

	var out spaceResponse
	if err := c.client().GetJSON(ctx, endpoint, nil, &out); err != nil {
		return driven.SearchResults{}, err
	}

	items := make([]domain.SyncItem, 0, len(out.Results))
	for _, space := range out.Results {
		if query != "" && !strings.Contains(strings.ToLower(space.Name), strings.ToLower(query)) {
			continue
		}
		items = append(items, domain.SyncItem{
			UUID:       space.Key,
			Title:      space.Name,
			OriginalID: space.Key,
			Status:     domain.StatusPending,
			IsFolder:   true,
		})
	}

	results := driven.SearchResults{Items: items}
	if out.Links.Next != "" {
		next := start + PageSize
		results.NextPage = func(ctx context.Context) (driven.SearchResults, error) {
			return c.spacesPage(ctx, query, next)
		}
	}
	return results, nil
}

func mapContent(result contentResult) domain.SyncItem {
	item := domain.SyncItem{
		UUID:        result.ID,
		Title:       result.Title,
		OriginalID:  result.ID,
		ModifiedGMT: result.Version.When,
		Metadata:    map[string]string{"type": result.Type},
		Status:      domain.StatusPending,
	}
	if result.Type == "attachment" {
		item.Metadata["downloadLink"] = result.Links.Download
		// Attachments are keyed by owning page plus filename, so a
		// re-uploaded attachment updates the same resource while two
		// attachments on one page stay distinct.
		if pageID := pageIDFromWebUI(result.Links.WebUI); pageID != "" {
			item.OriginalID = pageID + "/" + result.Title
		}
	}
	return item
}

// pageIDFromWebUI pulls the owning page id out of an attachment webui link,
// e.g. /pages/viewpageattachments.action?pageId=98391&...
func pageIDFromWebUI(webui string) string {
	_, after, found := strings.Cut(webui, "pageId=")
	if !found {
		return ""
	}
	if idx := strings.IndexAny(after, "&#"); idx >= 0 {
		after = after[:idx]
	}
	return after
}

// cqlTimestamp truncates an RFC3339 watermark to the "YYYY-MM-DD HH:mm"
// form CQL accepts.
func cqlTimestamp(since string) string {
	ts := strings.Replace(since, "T", " ", 1)
	if len(ts) > 16 {
		ts = ts[:16]
	}
	return ts
}
