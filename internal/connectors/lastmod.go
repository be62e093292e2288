package connectors

import (
	"context"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// FolderFetch queries one folder for items changed after the watermark.
type FolderFetch func(ctx context.Context, folder domain.SyncItem) ([]domain.SyncItem, error)

// ModifiedSince fans out one independent request per folder concurrently and
// joins the results. If any per-folder query fails, the entire call returns
// an empty list rather than a partial one: a deliberate
// availability-over-completeness policy, so one broken folder never stalls
// the polling loop.
func ModifiedSince(ctx context.Context, folders []domain.SyncItem, fetch FolderFetch) ([]domain.SyncItem, error) {
	if len(folders) == 0 {
		return nil, nil
	}

	results := make([][]domain.SyncItem, len(folders))
	errs := make([]error, len(folders))

	var wg sync.WaitGroup
	for i, folder := range folders {
		wg.Add(1)
		go func(i int, folder domain.SyncItem) {
			defer wg.Done()
			results[i], errs[i] = fetch(ctx, folder)
		}(i, folder)
	}
	wg.Wait()

	var items []domain.SyncItem
	for i, err := range errs {
		if err != nil {
			logger.Warn("last-modified query failed for folder %q: %v", folders[i].OriginalID, err)
			return []domain.SyncItem{}, nil
		}
		items = append(items, results[i]...)
	}
	return items, nil
}

// NewerThan filters items whose ModifiedGMT is strictly after the watermark.
// Timestamps are RFC 3339 strings, so lexical comparison preserves order.
func NewerThan(items []domain.SyncItem, since string) []domain.SyncItem {
	var out []domain.SyncItem
	for _, item := range items {
		if item.ModifiedGMT != "" && item.ModifiedGMT > since {
			out = append(out, item)
		}
	}
	return out
}
