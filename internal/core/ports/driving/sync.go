package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// SyncRunner drives the never-stop polling loop.
type SyncRunner interface {
	// Run blocks until ctx is cancelled, alternating upload passes and
	// last-modified collection passes at fixed cadences. A failing source
	// is skipped for the current pass and retried at the next interval;
	// no source failure terminates the loop.
	Run(ctx context.Context) error
}

// SourceAdmin is the control surface consumed by the local HTTP server.
type SourceAdmin interface {
	// MergeSources shallow-merges partial source objects into the
	// persisted store, last write wins per source id.
	MergeSources(ctx context.Context, patches map[string]map[string]any) error

	// ListSources returns all configured sources.
	ListSources(ctx context.Context) (map[string]domain.Source, error)
}
