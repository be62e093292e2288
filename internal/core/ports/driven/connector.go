package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Connector fetches items from one provider. All connectors implement the
// same capability set; unsupported operations return domain.ErrUnsupported.
// Instances are cheap and stateless between calls: the registry produces a
// fresh one per use, configured via SetParameters.
type Connector interface {
	// SetParameters configures the connector from the source's parameter bag.
	SetParameters(params domain.ConnectorParameters)

	// Parameters returns the current parameter bag, including any tokens
	// replaced by RefreshAuthentication.
	Parameters() domain.ConnectorParameters

	// HasAuthData reports whether credentials are present locally.
	// It never performs a network call.
	HasAuthData() bool

	// Folders lists container objects, optionally filtered by query.
	Folders(ctx context.Context, query string) (SearchResults, error)

	// Files lists leaf documents, optionally filtered by a query whose
	// semantics are provider-native (full-text search vs substring match).
	Files(ctx context.Context, query string) (SearchResults, error)

	// LastModified queries each folder independently for items changed
	// after since and concatenates the results. If any per-folder query
	// fails, the whole call degrades to an empty list instead of
	// propagating: loop availability is preferred over completeness.
	LastModified(ctx context.Context, since string, folders []domain.SyncItem) ([]domain.SyncItem, error)

	// Download fetches the item's content. Link-only connectors return
	// domain.ErrUnsupported; the destination fetches via Link instead.
	Download(ctx context.Context, item domain.SyncItem) (io.ReadCloser, error)

	// Link returns a descriptor the destination can fetch itself.
	Link(ctx context.Context, item domain.SyncItem) (domain.Link, error)

	// RefreshAuthentication exchanges the stored refresh token for a new
	// access token. On success the parameter bag holds the new token and
	// true is returned. On failure both tokens are cleared and false is
	// returned, forcing a fresh interactive grant upstream.
	RefreshAuthentication(ctx context.Context) (bool, error)

	// IsExternal reports whether content is ingested by link rather than
	// by uploading bytes.
	IsExternal() bool
}

// PageFunc fetches the next page of a listing. The sequence is lazy, finite
// and non-restartable: each page is requested only after the previous one
// resolved, and re-querying from scratch yields an independent sequence.
type PageFunc func(ctx context.Context) (SearchResults, error)

// SearchResults is one page of a listing. A nil NextPage terminates the
// sequence.
type SearchResults struct {
	Items    []domain.SyncItem
	NextPage PageFunc
}

// AllItems drains a paginated listing sequentially and returns every item
// exactly once. Pages are never fetched concurrently; continuation tokens
// are stateful and provider-issued.
func AllItems(ctx context.Context, results SearchResults) ([]domain.SyncItem, error) {
	items := results.Items
	for results.NextPage != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := results.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		results = next
		items = append(items, results.Items...)
	}
	return items, nil
}

// ConnectorFactory produces a fresh connector instance.
type ConnectorFactory func() Connector
