package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/syncbridge/internal/connectors/httpclient"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// cacheFile is the manifest cache name under the data directory.
const cacheFile = "connectors.json"

// ManifestEntry declares one external connector.
type ManifestEntry struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
	External bool   `json:"external,omitempty"`
}

// Loader fetches the connector manifest and keeps a cached copy so a dead
// manifest host does not lose previously known connectors.
type Loader struct {
	manifestURL string
	dataDir     string
	client      *httpclient.Client
}

// NewLoader creates a manifest loader. manifestURL may be empty, in which
// case Load returns nothing.
func NewLoader(manifestURL, dataDir string) *Loader {
	return &Loader{
		manifestURL: manifestURL,
		dataDir:     dataDir,
		client:      httpclient.New(),
	}
}

// Load returns the connectors declared by the manifest. A fetch failure
// falls back to the cached copy; only when both are unavailable does Load
// return an empty list. Load never returns an error: dynamic connectors
// are best-effort and must not block the static ones.
func (l *Loader) Load(ctx context.Context) []*Connector {
	if l.manifestURL == "" {
		return nil
	}

	entries, err := l.fetch(ctx)
	if err != nil {
		logger.Warn("manifest fetch failed, using cache: %v", err)
		entries, err = l.readCache()
		if err != nil {
			logger.Warn("no usable connector manifest: %v", err)
			return nil
		}
	}

	connectors := make([]*Connector, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" || entry.Endpoint == "" {
			logger.Warn("skipping manifest entry without id or endpoint")
			continue
		}
		connectors = append(connectors, NewConnector(entry))
	}
	return connectors
}

func (l *Loader) fetch(ctx context.Context) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := l.client.GetJSON(ctx, l.manifestURL, nil, &entries); err != nil {
		return nil, err
	}
	l.writeCache(entries)
	return entries, nil
}

func (l *Loader) cachePath() string {
	return filepath.Join(l.dataDir, cacheFile)
}

func (l *Loader) writeCache(entries []ManifestEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := os.WriteFile(l.cachePath(), data, 0o600); err != nil {
		logger.Warn("cannot cache connector manifest: %v", err)
	}
}

func (l *Loader) readCache() ([]ManifestEntry, error) {
	data, err := os.ReadFile(l.cachePath())
	if err != nil {
		return nil, fmt.Errorf("read manifest cache: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode manifest cache: %w", err)
	}
	return entries, nil
}
