// Package gdrive implements the Google Drive v3 connector on top of
// google.golang.org/api. Listings page through nextPageToken with a q=
// expression combining name-contains and mimeType predicates; native Google
// Workspace documents are flagged for PDF export and downloaded through the
// export endpoint instead of alt=media.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/syncbridge/internal/connectors"
	"github.com/custodia-labs/syncbridge/internal/connectors/oauth"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "gdrive"

// PageSize is the listing page size.
const PageSize = 50

const (
	mimeFolder          = "application/vnd.google-apps.folder"
	workspaceMimePrefix = "application/vnd.google-apps"
	exportMimeType      = "application/pdf"

	listFields = "nextPageToken, files(id,name,mimeType,modifiedTime)"
)

// ServiceFactory builds a Drive service for the given access token.
// Overridable so tests can point the client at a mock endpoint.
type ServiceFactory func(ctx context.Context, token string) (*drive.Service, error)

func defaultServiceFactory(ctx context.Context, token string) (*drive.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return drive.NewService(ctx, option.WithTokenSource(ts))
}

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector syncs documents from Google Drive.
type Connector struct {
	params     domain.ConnectorParameters
	token      string
	refresher  *oauth.Refresher
	newService ServiceFactory
}

// New creates a Google Drive connector.
func New() driven.Connector {
	return &Connector{
		refresher:  oauth.NewRefresher(),
		newService: defaultServiceFactory,
	}
}

// NewWithServiceFactory creates a connector with a custom service factory.
// Used by tests to target a mock provider.
func NewWithServiceFactory(factory ServiceFactory) *Connector {
	return &Connector{
		refresher:  oauth.NewRefresher(),
		newService: factory,
	}
}

// SetParameters configures the connector: "token" and "refresh" hold the
// OAuth tokens, "refresh_endpoint" the relay used to renew them.
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

// IsExternal reports false: content is downloaded and uploaded as bytes.
func (c *Connector) IsExternal() bool {
	return false
}

// Folders lists folder objects, optionally filtered by name.
func (c *Connector) Folders(ctx context.Context, query string) (driven.SearchResults, error) {
	return c.listPage(ctx, query, "", true, "")
}

// Files lists non-folder documents, optionally filtered by name.
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

// Download fetches file bytes: native Workspace documents go through the
// PDF export endpoint, everything else through alt=media.
func (c *Connector) Download(ctx context.Context, item domain.SyncItem) (io.ReadCloser, error) {
	svc, err := c.newService(ctx, c.token)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	if item.Metadata["needsPdfConversion"] == "yes" {
		resp, err = svc.Files.Export(item.OriginalID, exportMimeType).Context(ctx).Download()
	} else {
		resp, err = svc.Files.Get(item.OriginalID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return nil, wrapError(err)
	}
	return resp.Body, nil
}

// Link is not supported: Drive content is always downloaded directly.
func (c *Connector) Link(_ context.Context, _ domain.SyncItem) (domain.Link, error) {
	return domain.Link{}, domain.ErrUnsupported
}

// RefreshAuthentication renews the access token through the relay endpoint.
func (c *Connector) RefreshAuthentication(ctx context.Context) (bool, error) {
	ok, err := c.refresher.RefreshEndpoint(ctx, c.params)
	c.token = c.params.String(oauth.KeyToken)
	return ok, err
}

func (c *Connector) listPage(
	ctx context.Context, query, folderID string, foldersOnly bool, pageToken string,
) (driven.SearchResults, error) {
	svc, err := c.newService(ctx, c.token)
	if err != nil {
		return driven.SearchResults{}, err
	}

	call := svc.Files.List().
		PageSize(PageSize).
		Fields(googleapi.Field(listFields)).
		Q(buildQuery(query, folderID, foldersOnly)).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	list, err := call.Do()
	if err != nil {
		return driven.SearchResults{}, wrapError(err)
	}

	items := make([]domain.SyncItem, 0, len(list.Files))
	for _, f := range list.Files {
		items = append(items, mapFile(f))
	}

	results := driven.SearchResults{Items: items}
	if list.NextPageToken != "" {
		next := list.NextPageToken
		results.NextPage = func(ctx context.Context) (driven.SearchResults, error) {
			return c.listPage(ctx, query, folderID, foldersOnly, next)
		}
	}
	return results, nil
}

// buildQuery assembles the Drive q= expression.
func buildQuery(query, folderID string, foldersOnly bool) string {
	mime := fmt.Sprintf("mimeType = '%s'", mimeFolder)
	if !foldersOnly {
		mime = "not " + mime
	}

	q := mime
	if query != "" {
		q = fmt.Sprintf("name contains '%s' and %s", strings.ReplaceAll(query, "'", `\'`), mime)
	}
	if folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", folderID)
	}
	return q
}

func mapFile(f *drive.File) domain.SyncItem {
	needsPdf := strings.HasPrefix(f.MimeType, workspaceMimePrefix)
	mimeType := f.MimeType
	if needsPdf {
		mimeType = exportMimeType
	}
	return domain.SyncItem{
		UUID:        f.Id,
		Title:       f.Name,
		OriginalID:  f.Id,
		ModifiedGMT: f.ModifiedTime,
		Metadata: map[string]string{
			"needsPdfConversion": boolWord(needsPdf),
			"mimeType":           mimeType,
		},
		Status:   domain.StatusPending,
		IsFolder: f.MimeType == mimeFolder,
	}
}

func boolWord(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// wrapError maps Drive API errors onto the engine's taxonomy.
func wrapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusUnauthorized:
		return fmt.Errorf("drive: %w", domain.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("drive: %w", domain.ErrNotFound)
	default:
		return &domain.ProviderError{StatusCode: gerr.Code, Endpoint: "drive/v3", Body: gerr.Message}
	}
}
