// Package memory provides in-memory store implementations for tests and
// for running the engine without persistence.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore keeps sources in memory with the same merge semantics as the
// file-backed store.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]json.RawMessage
}

// NewSourceStore creates an empty in-memory source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{sources: make(map[string]json.RawMessage)}
}

// sourceKeys mirrors the file store: the JSON keys Save owns and replaces.
var sourceKeys = []string{
	"connectorId", "parameters", "destination", "items",
	"folders", "permanentSync", "lastSyncGMT", "total",
}

// Save stores a source, overlaying its fields onto the stored object so
// keys the engine does not model survive.
func (s *SourceStore) Save(_ context.Context, id string, source domain.Source) error {
	encoded, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("encode source %s: %w", id, err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return fmt.Errorf("encode source %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]json.RawMessage)
	if existing, ok := s.sources[id]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return fmt.Errorf("decode source %s: %w", id, err)
		}
	}
	for _, key := range sourceKeys {
		delete(merged, key)
	}
	for key, value := range fields {
		merged[key] = value
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode source %s: %w", id, err)
	}
	s.sources[id] = raw
	return nil
}

// Merge shallow-merges a partial source object into the stored one.
func (s *SourceStore) Merge(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]json.RawMessage)
	if existing, ok := s.sources[id]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return fmt.Errorf("decode source %s: %w", id, err)
		}
	}
	for key, value := range patch {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode patch key %s: %w", key, err)
		}
		merged[key] = raw
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode source %s: %w", id, err)
	}
	s.sources[id] = raw
	return nil
}

// Get retrieves a source by id.
func (s *SourceStore) Get(_ context.Context, id string) (*domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	var source domain.Source
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("decode source %s: %w", id, err)
	}
	return &source, nil
}

// Delete removes a source.
func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
	return nil
}

// List returns all sources keyed by id.
func (s *SourceStore) List(_ context.Context) (map[string]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make(map[string]domain.Source, len(s.sources))
	for id, raw := range s.sources {
		var source domain.Source
		if err := json.Unmarshal(raw, &source); err != nil {
			return nil, fmt.Errorf("decode source %s: %w", id, err)
		}
		sources[id] = source
	}
	return sources, nil
}
