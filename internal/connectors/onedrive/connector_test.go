package onedrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/connectors/microsoft"
	"github.com/custodia-labs/syncbridge/internal/connectors/oauth"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

func newMockGraph(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/me/drive/root/children", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var page microsoft.ListResponse
		if r.URL.Query().Get("$skiptoken") == "" {
			page = microsoft.ListResponse{
				Value: []microsoft.DriveItem{
					{ID: "f-1", Name: "notes.txt", File: &microsoft.FileFacet{MimeType: "text/plain"},
						LastModified: "2025-02-01T00:00:00Z", DownloadURL: "https://dl.example/f-1"},
					{ID: "d-1", Name: "Archive", Folder: &microsoft.ItemSlot{}},
				},
				NextLink: "https://graph.example/me/drive/root/children?$skiptoken=TOK2",
			}
		} else {
			page = microsoft.ListResponse{
				Value: []microsoft.DriveItem{
					{ID: "f-2", Name: "deck.pptx", File: &microsoft.FileFacet{}, DownloadURL: "https://dl.example/f-2"},
				},
			}
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/me/drive/root/search(q='deck')", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(microsoft.ListResponse{
			Value: []microsoft.DriveItem{
				{ID: "f-2", Name: "deck.pptx", File: &microsoft.FileFacet{}, DownloadURL: "https://dl.example/f-2"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newConnector(graphURL, tokenURL string) *Connector {
	c := NewWithBaseURLs(graphURL, tokenURL)
	c.SetParameters(domain.ConnectorParameters{
		oauth.KeyToken:   "tok",
		oauth.KeyRefresh: "ref",
	})
	return c
}

func TestFilesSkipsFoldersAndFollowsSkipToken(t *testing.T) {
	srv := newMockGraph(t)
	c := newConnector(srv.URL, "")

	results, err := c.Files(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)

	// The folder entry from page one is dropped, both file pages survive.
	require.Len(t, items, 2)
	assert.Equal(t, "f-1", items[0].OriginalID)
	assert.Equal(t, "f-2", items[1].OriginalID)
}

func TestFilesWithQueryUsesSearch(t *testing.T) {
	srv := newMockGraph(t)
	c := newConnector(srv.URL, "")

	results, err := c.Files(context.Background(), "deck")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "deck.pptx", items[0].Title)
}

func TestLinkCarriesBearerHeader(t *testing.T) {
	c := newConnector("", "")

	link, err := c.Link(context.Background(), domain.SyncItem{
		OriginalID: "f-1",
		Metadata:   map[string]string{"downloadUrl": "https://dl.example/f-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example/f-1", link.URI)
	assert.Equal(t, "Bearer tok", link.ExtraHeaders["Authorization"])
}

func TestLinkWithoutDownloadURL(t *testing.T) {
	c := newConnector("", "")
	_, err := c.Link(context.Background(), domain.SyncItem{OriginalID: "f-9"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDownloadAndFoldersUnsupported(t *testing.T) {
	c := newConnector("", "")

	_, err := c.Download(context.Background(), domain.SyncItem{})
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	_, err = c.Folders(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	_, err = c.LastModified(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestRefreshAuthenticationReplacesTokens(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "ref", r.Form.Get("refresh_token"))
		assert.Equal(t, tokenScope, r.Form.Get("scope"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "tok-2",
			"refresh_token": "ref-2",
		})
	}))
	defer tokenSrv.Close()

	c := newConnector("", tokenSrv.URL)
	ok, err := c.RefreshAuthentication(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", c.Parameters().String(oauth.KeyToken))
	assert.Equal(t, "ref-2", c.Parameters().String(oauth.KeyRefresh))
}

func TestRefreshAuthenticationFailureClearsTokens(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tokenSrv.Close()

	c := newConnector("", tokenSrv.URL)
	ok, _ := c.RefreshAuthentication(context.Background())
	assert.False(t, ok)
	assert.Empty(t, c.Parameters().String(oauth.KeyToken))
	assert.Empty(t, c.Parameters().String(oauth.KeyRefresh))
	assert.False(t, c.HasAuthData())
}
