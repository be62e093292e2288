// Package folder implements the local filesystem connector. Listing is a
// synchronous recursive directory walk; incremental sync compares file
// change times against the watermark.
package folder

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/syncbridge/internal/connectors"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ID is the connector identifier.
const ID = "folder"

// ignoredFiles are filesystem artifacts never worth syncing.
var ignoredFiles = map[string]bool{
	".DS_Store": true,
	"Thumbs.db": true,
}

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector syncs files from a local directory tree.
type Connector struct {
	params domain.ConnectorParameters
	path   string
}

// New creates a folder connector.
func New() driven.Connector {
	return &Connector{}
}

// SetParameters configures the connector. The only parameter is "path",
// the root directory to walk.
func (c *Connector) SetParameters(params domain.ConnectorParameters) {
	c.params = params
	c.path = params.String("path")
}

// Parameters returns the current parameter bag.
func (c *Connector) Parameters() domain.ConnectorParameters {
	return c.params
}

// HasAuthData always reports true: the local filesystem needs no credentials.
func (c *Connector) HasAuthData() bool {
	return true
}

// IsExternal reports false: content is uploaded as bytes.
func (c *Connector) IsExternal() bool {
	return false
}

// Folders is not supported: the walk is always rooted at the configured path.
func (c *Connector) Folders(_ context.Context, _ string) (driven.SearchResults, error) {
	return driven.SearchResults{}, domain.ErrUnsupported
}

// Files walks the configured directory and returns every regular file,
// optionally filtered by a case-insensitive substring match on the name.
func (c *Connector) Files(_ context.Context, query string) (driven.SearchResults, error) {
	return c.listFiles(c.path, query)
}

// LastModified walks each given folder and keeps files changed after since.
func (c *Connector) LastModified(ctx context.Context, since string, folders []domain.SyncItem) ([]domain.SyncItem, error) {
	watermark, err := time.Parse(time.RFC3339, since)
	if err != nil {
		watermark = time.Time{}
	}

	return connectors.ModifiedSince(ctx, folders, func(_ context.Context, folder domain.SyncItem) ([]domain.SyncItem, error) {
		results, err := c.listFiles(folder.OriginalID, "")
		if err != nil {
			return nil, err
		}
		var changed []domain.SyncItem
		for _, item := range results.Items {
			info, err := os.Stat(item.OriginalID)
			if err != nil {
				return nil, err
			}
			if info.ModTime().After(watermark) {
				changed = append(changed, item)
			}
		}
		return changed, nil
	})
}

// Download opens the file for streaming.
func (c *Connector) Download(_ context.Context, item domain.SyncItem) (io.ReadCloser, error) {
	return os.Open(item.OriginalID)
}

// Link is not supported: content is always uploaded directly.
func (c *Connector) Link(_ context.Context, _ domain.SyncItem) (domain.Link, error) {
	return domain.Link{}, domain.ErrUnsupported
}

// RefreshAuthentication is a no-op success for the local filesystem.
func (c *Connector) RefreshAuthentication(_ context.Context) (bool, error) {
	return true, nil
}

func (c *Connector) listFiles(root, query string) (driven.SearchResults, error) {
	var items []domain.SyncItem
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if ignoredFiles[name] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if query != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
			return nil
		}
		item := domain.SyncItem{
			Title:      name,
			OriginalID: path,
			Metadata:   map[string]string{},
			Status:     domain.StatusPending,
		}
		if info, err := d.Info(); err == nil {
			item.ModifiedGMT = info.ModTime().UTC().Format(time.RFC3339)
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return driven.SearchResults{}, err
	}
	return driven.SearchResults{Items: items}, nil
}
