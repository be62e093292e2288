package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

func TestSaveGetDelete(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "src-1", domain.Source{ConnectorID: "folder"}))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "folder", got.ConnectorID)

	require.NoError(t, store.Delete(ctx, "src-1"))
	_, err = store.Get(ctx, "src-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMergeMatchesFileStoreSemantics(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "src-1", map[string]any{
		"connectorId": "dropbox",
		"parameters":  map[string]any{"token": "tok"},
	}))
	require.NoError(t, store.Merge(ctx, "src-1", map[string]any{
		"permanentSync": true,
	}))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "dropbox", got.ConnectorID)
	assert.Equal(t, "tok", got.Parameters.String("token"))
	assert.True(t, got.PermanentSync)
}

func TestSavePreservesUnknownFields(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "src-1", map[string]any{
		"connectorId":  "folder",
		"customLabels": []string{"finance"},
	}))
	require.NoError(t, store.Save(ctx, "src-1", domain.Source{
		ConnectorID: "folder",
		LastSyncGMT: "2025-06-01T12:00:00Z",
	}))

	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(store.sources["src-1"], &stored))
	assert.JSONEq(t, `["finance"]`, string(stored["customLabels"]))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T12:00:00Z", got.LastSyncGMT)
}

func TestListCopiesState(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a", domain.Source{ConnectorID: "folder"}))

	sources, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	// Mutating the returned map must not affect the store.
	delete(sources, "a")
	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}
