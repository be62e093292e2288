package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// sniffLen is how many leading bytes feed content-type detection.
const sniffLen = 3072

// Slug derives the stable destination identifier for a provider item.
// The same provider item always maps to the same resource, which is what
// makes re-uploads idempotent.
func Slug(originalID string) string {
	sum := sha256.Sum256([]byte(originalID))
	return hex.EncodeToString(sum[:])
}

// Uploader pushes one item into a knowledge box, creating the destination
// resource on first sight and overwriting it afterwards.
type Uploader struct {
	kb driven.KnowledgeBox
}

// NewUploader creates an uploader bound to one destination.
func NewUploader(kb driven.KnowledgeBox) *Uploader {
	return &Uploader{kb: kb}
}

// Process uploads a single item. Link-only connectors hand the destination
// a URI via a create-or-update write keyed by slug, so no resource is
// resolved first; everything else streams the downloaded bytes into a
// resolved resource.
func (u *Uploader) Process(ctx context.Context, connector driven.Connector, item domain.SyncItem) error {
	if connector.IsExternal() {
		link, err := connector.Link(ctx, item)
		if err != nil {
			return fmt.Errorf("link %s: %w", item.OriginalID, err)
		}
		return u.kb.CreateLinkResource(ctx, Slug(item.OriginalID), item.Title, link)
	}

	resource, err := u.resolveResource(ctx, item)
	if err != nil {
		return err
	}

	body, err := connector.Download(ctx, item)
	if err != nil {
		return fmt.Errorf("download %s: %w", item.OriginalID, err)
	}
	defer body.Close()

	contentType, reader := resolveContentType(item, body)
	if err := u.kb.UploadFile(ctx, resource, item.Title, contentType, reader); err != nil {
		return fmt.Errorf("upload %s: %w", item.OriginalID, err)
	}
	return nil
}

// resolveResource finds the destination resource for the item, creating it
// when the slug is unknown. Any lookup failure other than not-found is
// fatal: guessing here would risk duplicate resources.
func (u *Uploader) resolveResource(ctx context.Context, item domain.SyncItem) (*driven.Resource, error) {
	slug := Slug(item.OriginalID)

	resource, err := u.kb.ResourceBySlug(ctx, slug)
	if err == nil {
		logger.Debug("item %s maps to existing resource %s", item.OriginalID, resource.ID)
		return resource, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup slug %s: %w", slug, err)
	}
	return u.kb.CreateResource(ctx, slug, item.Title)
}

// resolveContentType picks the upload content type: provider metadata
// first, then the filename extension, then sniffing the leading bytes.
func resolveContentType(item domain.SyncItem, body io.Reader) (string, io.Reader) {
	if ct := item.Metadata["mimeType"]; ct != "" {
		return ct, body
	}
	if ct := mime.TypeByExtension(filepath.Ext(item.Title)); ct != "" {
		return ct, body
	}

	header := make([]byte, sniffLen)
	n, _ := io.ReadFull(body, header)
	reader := io.MultiReader(bytes.NewReader(header[:n]), body)
	if n == 0 {
		return "application/octet-stream", reader
	}
	return mimetype.Detect(header[:n]).String(), reader
}
