// Package file provides the persisted source store: one JSON file mapping
// source id to source object. Objects are kept as raw JSON internally so
// fields this build does not know about survive a round trip, and Merge
// patches them shallowly, last write wins per key. A single mutex
// serialises every operation; the orchestrator and the control server
// share one store instance, so the file never sees concurrent writers.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// storeFile is the source database name under the data directory.
const storeFile = "sources.json"

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore persists sources in a single JSON file.
type SourceStore struct {
	mu   sync.Mutex
	path string
}

// NewSourceStore creates a store writing to dataDir/sources.json.
func NewSourceStore(dataDir string) (*SourceStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &SourceStore{path: filepath.Join(dataDir, storeFile)}, nil
}

// sourceKeys are the JSON keys the engine's source model owns. Save replaces
// exactly these in the stored object; every other key belongs to whoever
// wrote it via Merge and survives untouched.
var sourceKeys = []string{
	"connectorId", "parameters", "destination", "items",
	"folders", "permanentSync", "lastSyncGMT", "total",
}

// Save stores a source, overlaying its fields onto the stored object so
// keys the engine does not model survive.
func (s *SourceStore) Save(_ context.Context, id string, source domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("encode source %s: %w", id, err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return fmt.Errorf("encode source %s: %w", id, err)
	}

	merged := make(map[string]json.RawMessage)
	if existing, ok := db[id]; ok {
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
	db[id] = raw
	return s.write(db)
}

// Merge shallow-merges a partial source object into the stored one. The
// source is created when absent. Keys the engine does not model are
// written and preserved verbatim.
func (s *SourceStore) Merge(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return err
	}

	merged := make(map[string]json.RawMessage)
	if existing, ok := db[id]; ok {
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
	db[id] = raw
	return s.write(db)
}

// Get retrieves a source by id.
func (s *SourceStore) Get(_ context.Context, id string) (*domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := db[id]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}

	var source domain.Source
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("decode source %s: %w", id, err)
	}
	return &source, nil
}

// Delete removes a source. Deleting an unknown source is not an error.
func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return err
	}
	delete(db, id)
	return s.write(db)
}

// List returns all sources keyed by id.
func (s *SourceStore) List(_ context.Context) (map[string]domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.read()
	if err != nil {
		return nil, err
	}

	sources := make(map[string]domain.Source, len(db))
	for id, raw := range db {
		var source domain.Source
		if err := json.Unmarshal(raw, &source); err != nil {
			return nil, fmt.Errorf("decode source %s: %w", id, err)
		}
		sources[id] = source
	}
	return sources, nil
}

func (s *SourceStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, fmt.Errorf("read source store: %w", err)
	}

	db := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("decode source store: %w", err)
	}
	return db, nil
}

// write replaces the store file atomically so a crash mid-write never
// leaves a truncated database.
func (s *SourceStore) write(db map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode source store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write source store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace source store: %w", err)
	}
	return nil
}
