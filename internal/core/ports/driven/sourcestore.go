package driven

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// SourceStore persists source configurations. It is the single owner of
// source state: the orchestrator reads transient copies, mutates them during
// a pass and writes them back through Save.
type SourceStore interface {
	// Save stores or replaces a source.
	Save(ctx context.Context, id string, source domain.Source) error

	// Merge shallow-merges a partial source object into the stored one,
	// last write wins per key. Unknown fields in the patch are preserved
	// verbatim.
	Merge(ctx context.Context, id string, patch map[string]any) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// Delete removes a source.
	Delete(ctx context.Context, id string) error

	// List returns all configured sources keyed by ID.
	List(ctx context.Context) (map[string]domain.Source, error)
}
