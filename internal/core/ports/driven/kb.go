package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Resource identifies one destination resource.
type Resource struct {
	// ID is the destination-assigned identifier.
	ID string

	// Slug is the deterministic dedup key derived from the provider id.
	Slug string
}

// KnowledgeBox is the destination knowledge-base contract consumed by the
// upload pipeline. Only the operations the engine calls are specified; the
// full API surface is an external collaborator.
type KnowledgeBox interface {
	// ResourceBySlug looks up an existing resource.
	// Returns domain.ErrNotFound when no resource has the slug.
	ResourceBySlug(ctx context.Context, slug string) (*Resource, error)

	// CreateResource creates an empty resource identified by slug.
	CreateResource(ctx context.Context, slug, title string) (*Resource, error)

	// UploadFile attaches content to a resource as a file field.
	UploadFile(ctx context.Context, res *Resource, filename, contentType string, body io.Reader) error

	// CreateLinkResource creates or updates a resource whose content is a
	// remote link the destination fetches itself.
	CreateLinkResource(ctx context.Context, slug, title string, link domain.Link) error
}

// KnowledgeBoxFactory builds a client for one source's destination.
type KnowledgeBoxFactory func(cfg domain.DestinationConfig) KnowledgeBox
