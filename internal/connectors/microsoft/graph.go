// Package microsoft holds the Microsoft Graph pieces shared by the OneDrive
// and SharePoint connectors: the drive item wire types, paged listing with
// $skiptoken continuation, and the bearer-token client setup.
package microsoft

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/custodia-labs/syncbridge/internal/connectors/httpclient"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// DefaultGraphBase is the production Microsoft Graph endpoint.
const DefaultGraphBase = "https://graph.microsoft.com/v1.0"

// PageSize is the Graph listing page size.
const PageSize = 50

// DriveItem is the subset of the Graph driveItem resource the connectors use.
type DriveItem struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	LastModified string     `json:"lastModifiedDateTime"`
	Folder       *ItemSlot  `json:"folder,omitempty"`
	File         *FileFacet `json:"file,omitempty"`
	DownloadURL  string     `json:"@microsoft.graph.downloadUrl"`
}

// ItemSlot marks a facet whose presence, not content, matters.
type ItemSlot struct{}

// FileFacet carries the detected MIME type of a file item.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// ListResponse is a Graph collection page.
type ListResponse struct {
	Value    []DriveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// SiteResponse is a page of the sites collection.
type SiteResponse struct {
	Value []Site `json:"value"`
}

// Site identifies a SharePoint site.
type Site struct {
	ID   string `json:"id"`
	Name string `json:"displayName"`
}

// Client calls Microsoft Graph with a bearer token.
type Client struct {
	http *httpclient.Client
	base string
}

// NewClient creates a Graph client. base is the API root, normally
// DefaultGraphBase; tests point it at a mock server.
func NewClient(base, token string) *Client {
	return &Client{
		http: httpclient.New(httpclient.WithHeader("Authorization", "Bearer "+token)),
		base: base,
	}
}

// List fetches one page of a driveItem collection. path is relative to the
// API root; params are ignored when skipToken is set because the token
// already encodes the full continuation state.
func (c *Client) List(ctx context.Context, path string, params url.Values, skipToken string) (ListResponse, error) {
	if skipToken != "" {
		params = url.Values{"$skiptoken": {skipToken}}
	}

	endpoint := c.base + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var out ListResponse
	if err := c.http.GetJSON(ctx, endpoint, nil, &out); err != nil {
		return ListResponse{}, err
	}
	return out, nil
}

// FindSite resolves a site name to its id. The first search hit wins.
func (c *Client) FindSite(ctx context.Context, name string) (Site, error) {
	endpoint := c.base + "/sites?" + url.Values{"search": {name}}.Encode()

	var out SiteResponse
	if err := c.http.GetJSON(ctx, endpoint, nil, &out); err != nil {
		return Site{}, err
	}
	if len(out.Value) == 0 {
		return Site{}, domain.ErrNotFound
	}
	return out.Value[0], nil
}

// Stream opens a download URL for reading. The caller closes the body.
func (c *Client) Stream(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	return c.http.Download(ctx, http.MethodGet, downloadURL, nil)
}

// MapItem converts a Graph driveItem into a sync item. The pre-authenticated
// download URL rides along in the metadata so Download and Link need no
// further lookup.
func MapItem(item DriveItem) domain.SyncItem {
	mapped := domain.SyncItem{
		UUID:        item.ID,
		Title:       item.Name,
		OriginalID:  item.ID,
		ModifiedGMT: item.LastModified,
		Metadata:    map[string]string{"downloadUrl": item.DownloadURL},
		Status:      domain.StatusPending,
		IsFolder:    item.Folder != nil,
	}
	if item.File != nil {
		mapped.Metadata["mimeType"] = item.File.MimeType
	}
	return mapped
}

// SkipToken extracts the $skiptoken continuation from an @odata.nextLink.
// An empty result means the collection is exhausted.
func SkipToken(nextLink string) string {
	if nextLink == "" {
		return ""
	}
	parsed, err := url.Parse(nextLink)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("$skiptoken")
}
