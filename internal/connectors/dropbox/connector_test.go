package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// mockProvider serves a finite two-page listing.
func mockProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/files/list_folder", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(PageSize), body["limit"])

		fmt.Fprint(w, `{
			"entries": [
				{".tag": "file", "name": "a.txt", "id": "id:a", "client_modified": "2024-01-01T00:00:00Z"},
				{".tag": "folder", "name": "docs", "path_lower": "/docs"}
			],
			"cursor": "cur-1",
			"has_more": true
		}`)
	})

	mux.HandleFunc("/files/list_folder/continue", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cur-1", body["cursor"])

		fmt.Fprint(w, `{
			"entries": [{".tag": "file", "name": "b.txt", "id": "id:b", "client_modified": "2024-06-01T00:00:00Z"}],
			"cursor": "cur-2",
			"has_more": false
		}`)
	})

	mux.HandleFunc("/files/search_v2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"matches": [
				{"match_type": {".tag": "file"}, "metadata": {"metadata": {"name": "hit.txt", "id": "id:hit"}}},
				{"match_type": {".tag": "folder"}, "metadata": {"metadata": {"name": "hits", "path_lower": "/hits"}}}
			],
			"has_more": false
		}`)
	})

	mux.HandleFunc("/files/download", func(w http.ResponseWriter, r *http.Request) {
		var arg map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg))
		fmt.Fprintf(w, "content-of-%s", arg["path"])
	})

	return httptest.NewServer(mux)
}

func newConnector(t *testing.T, apiBase, contentBase string) driven.Connector {
	t.Helper()
	c := NewWithBaseURLs(apiBase, contentBase)
	c.SetParameters(domain.ConnectorParameters{"token": "tok"})
	return c
}

func TestFilesFollowsCursorExactlyOnce(t *testing.T) {
	ts := mockProvider(t)
	defer ts.Close()

	c := newConnector(t, ts.URL, ts.URL)
	results, err := c.Files(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)

	// Both pages, files only, no duplicates.
	require.Len(t, items, 2)
	assert.Equal(t, "id:a", items[0].OriginalID)
	assert.Equal(t, "id:b", items[1].OriginalID)
}

func TestFoldersPrependsRootEntry(t *testing.T) {
	ts := mockProvider(t)
	defer ts.Close()

	c := newConnector(t, ts.URL, ts.URL)
	results, err := c.Folders(context.Background(), "")
	require.NoError(t, err)

	require.NotEmpty(t, results.Items)
	assert.Equal(t, "/", results.Items[0].Title)
	assert.Equal(t, "", results.Items[0].OriginalID)
	assert.True(t, results.Items[0].IsFolder)
	// Folder entries are addressed by path.
	assert.Equal(t, "/docs", results.Items[1].OriginalID)
}

func TestFilesWithQueryUsesSearch(t *testing.T) {
	ts := mockProvider(t)
	defer ts.Close()

	c := newConnector(t, ts.URL, ts.URL)
	results, err := c.Files(context.Background(), "hit")
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, "id:hit", results.Items[0].OriginalID)
}

func TestLastModifiedFiltersByWatermark(t *testing.T) {
	ts := mockProvider(t)
	defer ts.Close()

	c := newConnector(t, ts.URL, ts.URL)
	items, err := c.LastModified(context.Background(), "2024-03-01T00:00:00Z", []domain.SyncItem{
		{OriginalID: "", IsFolder: true},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "id:b", items[0].OriginalID)
}

func TestDownloadSendsAPIArg(t *testing.T) {
	ts := mockProvider(t)
	defer ts.Close()

	c := newConnector(t, ts.URL, ts.URL)
	rc, err := c.Download(context.Background(), domain.SyncItem{OriginalID: "id:a"})
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content-of-id:a", string(data))
}

func TestUnauthorizedListing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newConnector(t, ts.URL, ts.URL)
	_, err := c.Files(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefreshAuthenticationClearsToken(t *testing.T) {
	c := newConnector(t, "http://unused", "http://unused")
	ok, err := c.RefreshAuthentication(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, c.HasAuthData())
	assert.Empty(t, c.Parameters().String("token"))
}
