package services

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/connectors/confluence"
	"github.com/custodia-labs/syncbridge/internal/connectors/dropbox"
	"github.com/custodia-labs/syncbridge/internal/connectors/folder"
	"github.com/custodia-labs/syncbridge/internal/connectors/gdrive"
	"github.com/custodia-labs/syncbridge/internal/connectors/onedrive"
	"github.com/custodia-labs/syncbridge/internal/connectors/sharepoint"
	"github.com/custodia-labs/syncbridge/internal/connectors/sitemap"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// ConnectorRegistry maps connector identifiers to factories. Built-in
// connectors are registered at construction; dynamic connectors join at
// runtime through Register.
type ConnectorRegistry struct {
	mu        sync.RWMutex
	factories map[string]driven.ConnectorFactory
}

// NewConnectorRegistry creates a registry with the built-in connectors.
func NewConnectorRegistry() *ConnectorRegistry {
	r := &ConnectorRegistry{factories: make(map[string]driven.ConnectorFactory)}
	r.Register(folder.ID, folder.New)
	r.Register(sitemap.ID, sitemap.New)
	r.Register(dropbox.ID, dropbox.New)
	r.Register(gdrive.ID, gdrive.New)
	r.Register(onedrive.ID, onedrive.New)
	r.Register(sharepoint.ID, sharepoint.New)
	r.Register(confluence.ID, confluence.New)
	return r
}

// Register adds or replaces a connector factory.
func (r *ConnectorRegistry) Register(id string, factory driven.ConnectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// New instantiates a connector by identifier.
func (r *ConnectorRegistry) New(id string) (driven.Connector, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, domain.ErrUnknownConnector)
	}
	return factory(), nil
}

// IDs lists the registered connector identifiers.
func (r *ConnectorRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}
