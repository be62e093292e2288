package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

// Ensure SourceService implements the interface.
var _ driving.SourceAdmin = (*SourceService)(nil)

// SourceService is the thin admin surface over the source store consumed
// by the local control server.
type SourceService struct {
	store driven.SourceStore
}

// NewSourceService creates a source admin service.
func NewSourceService(store driven.SourceStore) *SourceService {
	return &SourceService{store: store}
}

// MergeSources shallow-merges each patch into its source, creating sources
// that do not exist yet.
func (s *SourceService) MergeSources(ctx context.Context, patches map[string]map[string]any) error {
	for id, patch := range patches {
		if err := s.store.Merge(ctx, id, patch); err != nil {
			return fmt.Errorf("merge source %s: %w", id, err)
		}
	}
	return nil
}

// ListSources returns all configured sources.
func (s *SourceService) ListSources(ctx context.Context) (map[string]domain.Source, error) {
	return s.store.List(ctx)
}
