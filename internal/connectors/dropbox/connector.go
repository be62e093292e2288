// Package dropbox implements the Dropbox v2 REST connector. Full listings
// go through files/list_folder, query searches through files/search_v2;
// each has its own /continue continuation endpoint gated by has_more.
package dropbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/custodia-labs/syncbridge/internal/connectors"
	"github.com/custodia-labs/syncbridge/internal/connectors/httpclient"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "dropbox"

// PageSize is the fixed listing page size.
const PageSize = 50

const (
	defaultAPIBase     = "https://api.dropboxapi.com/2"
	defaultContentBase = "https://content.dropboxapi.com/2"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector syncs files from a Dropbox account.
type Connector struct {
	params domain.ConnectorParameters
	token  string
	client *httpclient.Client

	apiBase     string
	contentBase string
}

// New creates a Dropbox connector.
func New() driven.Connector {
	return &Connector{
		client:      httpclient.New(),
		apiBase:     defaultAPIBase,
		contentBase: defaultContentBase,
	}
}

// NewWithBaseURLs creates a connector against alternative endpoints.
// Used by tests to point at a mock provider.
func NewWithBaseURLs(apiBase, contentBase string) *Connector {
	return &Connector{
		client:      httpclient.New(),
		apiBase:     apiBase,
		contentBase: contentBase,
	}
}

// SetParameters configures the connector. The only parameter is "token",
// the Dropbox access token.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
	c.token = params.String("token")
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData reports whether an access token is present.
func (c *Connector) HasAuthData() bool {
	return c.token != ""
}

// IsExternal reports false: content is downloaded and uploaded as bytes.
func (c *Connector) IsExternal() bool {
	return false
}

// Folders lists folder entries, with a synthetic root "/" entry prepended to
// the first page so the whole account can be selected.
func (c *Connector) Folders(ctx context.Context, query string) (driven.SearchResults, error) {
	results, err := c.listPage(ctx, "", query, true, "")
	if err != nil {
		return driven.SearchResults{}, err
	}
	root := domain.SyncItem{
		Title:      "/",
		OriginalID: "",
		Metadata:   map[string]string{},
		Status:     domain.StatusPending,
		IsFolder:   true,
	}
	results.Items = append([]domain.SyncItem{root}, results.Items...)
	return results, nil
}

// Files lists leaf documents. A non-empty query switches from full listing
// to Dropbox full-text search.
func (c *Connector) Files(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listPage(ctx, "", query, false, "")
}

// LastModified lists each folder independently and keeps entries modified
// after since.
func (c *Connector) LastModified(ctx context.Context, since string, folders []domain.SyncItem) ([]domain.SyncItem, error) {
	return connectors.ModifiedSince(ctx, folders, func(ctx context.Context, folder domain.SyncItem) ([]domain.SyncItem, error) {
		results, err := c.listPage(ctx, folder.OriginalID, "", false, "")
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

// Download streams the file bytes via the content endpoint.
func (c *Connector) Download(ctx context.Context, item domain.SyncItem) (io.ReadCloser, error) {
	arg, err := json.Marshal(map[string]string{"path": item.OriginalID})
	if err != nil {
		return nil, err
	}
	return c.client.Download(ctx, http.MethodPost, c.contentBase+"/files/download", map[string]string{
		"Authorization":   "Bearer " + c.token,
		"Dropbox-API-Arg": string(arg),
	})
}

// Link is not supported: Dropbox content is always downloaded directly.
func (c *Connector) Link(_ context.Context, _ domain.SyncItem) (domain.Link, error) {
	return domain.Link{}, domain.ErrUnsupported
}

// RefreshAuthentication clears the token: Dropbox tokens are re-granted
// interactively, there is no refresh flow here.
func (c *Connector) RefreshAuthentication(_ context.Context) (bool, error) {
	c.token = ""
	if c.params != nil {
		c.params["token"] = ""
	}
	return false, nil
}

type entry struct {
	Tag            string `json:".tag"`
	Name           string `json:"name"`
	ID             string `json:"id"`
	PathLower      string `json:"path_lower"`
	ClientModified string `json:"client_modified"`
}

type listFolderResponse struct {
	Entries []entry `json:"entries"`
	Cursor  string  `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

type searchResponse struct {
	Matches []struct {
		MatchType struct {
			Tag string `json:".tag"`
		} `json:"match_type"`
		Metadata struct {
			Metadata entry `json:"metadata"`
		} `json:"metadata"`
	} `json:"matches"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
}

// listPage fetches one page. A non-empty cursor continues a previous page
// via the endpoint's /continue variant; full listing and search each keep
// their own continuation.
func (c *Connector) listPage(
	ctx context.Context, path, query string, foldersOnly bool, cursor string,
) (driven.SearchResults, error) {
	auth := map[string]string{"Authorization": "Bearer " + c.token}

	var items []domain.SyncItem
	var nextCursor string
	var hasMore bool

	if query != "" {
		url := c.apiBase + "/files/search_v2"
		body := any(map[string]string{"query": query})
		if cursor != "" {
			url += "/continue"
			body = map[string]string{"cursor": cursor}
		}
		var resp searchResponse
		if err := c.client.PostJSON(ctx, url, body, auth, &resp); err != nil {
			return driven.SearchResults{}, err
		}
		for _, match := range resp.Matches {
			if (match.MatchType.Tag == "folder") != foldersOnly {
				continue
			}
			items = append(items, mapEntry(match.Metadata.Metadata))
		}
		nextCursor, hasMore = resp.Cursor, resp.HasMore
	} else {
		url := c.apiBase + "/files/list_folder"
		body := any(map[string]any{
			"path":               path,
			"recursive":          true,
			"limit":              PageSize,
			"include_media_info": true,
		})
		if cursor != "" {
			url += "/continue"
			body = map[string]string{"cursor": cursor}
		}
		var resp listFolderResponse
		if err := c.client.PostJSON(ctx, url, body, auth, &resp); err != nil {
			return driven.SearchResults{}, err
		}
		for _, e := range resp.Entries {
			if (e.Tag == "folder") != foldersOnly {
				continue
			}
			items = append(items, mapEntry(e))
		}
		nextCursor, hasMore = resp.Cursor, resp.HasMore
	}

	results := driven.SearchResults{Items: items}
	if hasMore && nextCursor != "" {
		results.NextPage = func(ctx context.Context) (driven.SearchResults, error) {
			return c.listPage(ctx, path, query, foldersOnly, nextCursor)
		}
	}
	return results, nil
}

func mapEntry(e entry) domain.SyncItem {
	isFolder := e.Tag == "folder"
	originalID := e.ID
	if isFolder {
		// Folders are addressed by path so they can seed further listings.
		originalID = e.PathLower
	}
	return domain.SyncItem{
		Title:       e.Name,
		OriginalID:  originalID,
		Metadata:    map[string]string{},
		Status:      domain.StatusPending,
		ModifiedGMT: e.ClientModified,
		IsFolder:    isFolder,
	}
}
