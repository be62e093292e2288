package confluence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

type mockConfluence struct {
	server *httptest.Server
	// cqls records every CQL expression received by the search endpoint.
	cqls []string
}

func newMockConfluence(t *testing.T) *mockConfluence {
	t.Helper()
	m := &mockConfluence{}

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("dev@example.com:api-token"))

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/space", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"key": "ENG", "name": "Engineering"},
				{"key": "HR", "name": "People"},
			},
		})
	})
	mux.HandleFunc("/rest/api/content/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))
		m.cqls = append(m.cqls, r.URL.Query().Get("cql"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start == 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"id": "1001", "title": "Runbook", "type": "page",
						"version": map[string]string{"when": "2025-05-10T08:30:00Z"},
					},
					{
						"id": "2002", "title": "diagram.png", "type": "attachment",
						"version": map[string]string{"when": "2025-05-11T10:00:00Z"},
						"_links": map[string]string{
							"webui":    "/pages/viewpageattachments.action?pageId=1001&preview=diagram.png",
							"download": "/download/attachments/1001/diagram.png",
						},
					},
				},
				"_links": map[string]string{"next": "/rest/api/content/search?start=50"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"id": "3003", "title": "Postmortem", "type": "page",
					"version": map[string]string{"when": "2025-05-12T14:00:00Z"},
				},
			},
		})
	})
	mux.HandleFunc("/download/attachments/1001/diagram.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/rest/api/content/1001", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "body.storage", r.URL.Query().Get("expand"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"body": map[string]any{
				"storage": map[string]string{"value": "<p>restart the service</p>"},
			},
		})
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockConfluence) connector() driven.Connector {
	c := New()
	c.SetParameters(domain.ConnectorParameters{
		ParamURL:   m.server.URL,
		ParamUser:  "dev@example.com",
		ParamToken: "api-token",
	})
	return c
}

func TestFoldersListsSpaces(t *testing.T) {
	c := newMockConfluence(t).connector()

	results, err := c.Folders(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ENG", items[0].OriginalID)
	assert.True(t, items[0].IsFolder)
}

func TestFoldersFiltersByName(t *testing.T) {
	c := newMockConfluence(t).connector()

	results, err := c.Folders(context.Background(), "people")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "HR", items[0].OriginalID)
}

func TestFilesFollowsOffsetPagination(t *testing.T) {
	mock := newMockConfluence(t)
	c := mock.connector()

	results, err := c.Files(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "type = page", mock.cqls[0])
}

func TestFilesQueryUsesTextSearch(t *testing.T) {
	mock := newMockConfluence(t)
	c := mock.connector()

	_, err := c.Files(context.Background(), "runbook")
	require.NoError(t, err)
	require.NotEmpty(t, mock.cqls)
	assert.Equal(t, `text ~ "runbook"`, mock.cqls[0])
}

func TestAttachmentOriginalIDUsesOwningPage(t *testing.T) {
	c := newMockConfluence(t).connector()

	results, err := c.Files(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)

	var attachment domain.SyncItem
	for _, item := range items {
		if item.Metadata["type"] == "attachment" {
			attachment = item
		}
	}
	assert.Equal(t, "1001/diagram.png", attachment.OriginalID)
}

func TestLastModifiedTruncatesWatermarkToMinute(t *testing.T) {
	mock := newMockConfluence(t)
	c := mock.connector()

	folders := []domain.SyncItem{{OriginalID: "ENG", IsFolder: true}}
	_, err := c.LastModified(context.Background(), "2025-05-01T09:15:42Z", folders)
	require.NoError(t, err)

	require.NotEmpty(t, mock.cqls)
	assert.Equal(t, fmt.Sprintf(`space = "ENG" and lastModified > "%s"`, "2025-05-01 09:15"), mock.cqls[0])
}

func TestDownloadPageReturnsStorageBody(t *testing.T) {
	c := newMockConfluence(t).connector()

	body, err := c.Download(context.Background(), domain.SyncItem{
		OriginalID: "1001",
		Metadata:   map[string]string{"type": "page"},
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "<p>restart the service</p>", string(data))
}

func TestDownloadAttachmentUsesDownloadLink(t *testing.T) {
	c := newMockConfluence(t).connector()

	body, err := c.Download(context.Background(), domain.SyncItem{
		OriginalID: "1001/diagram.png",
		Metadata: map[string]string{
			"type":         "attachment",
			"downloadLink": "/download/attachments/1001/diagram.png",
		},
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestRefreshClearsToken(t *testing.T) {
	c := newMockConfluence(t).connector()

	ok, err := c.RefreshAuthentication(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, c.HasAuthData())
}
