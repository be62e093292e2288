package gdrive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/syncbridge/internal/connectors/oauth"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

type mockDrive struct {
	server *httptest.Server
	// queries records every q= expression received by the files listing.
	queries []string
}

func newMockDrive(t *testing.T) *mockDrive {
	t.Helper()
	m := &mockDrive{}

	mux := http.NewServeMux()
	mux.HandleFunc("/files/doc-1/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.URL.Query().Get("mimeType"))
		_, _ = w.Write([]byte("%PDF-exported"))
	})
	mux.HandleFunc("/files/bin-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = w.Write([]byte("raw bytes"))
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		m.queries = append(m.queries, r.URL.Query().Get("q"))

		var list drive.FileList
		if r.URL.Query().Get("pageToken") == "" {
			list = drive.FileList{
				NextPageToken: "page-2",
				Files: []*drive.File{
					{Id: "doc-1", Name: "Quarterly report", MimeType: "application/vnd.google-apps.document", ModifiedTime: "2025-03-01T10:00:00Z"},
				},
			}
		} else {
			list = drive.FileList{
				Files: []*drive.File{
					{Id: "bin-1", Name: "scan.pdf", MimeType: "application/pdf", ModifiedTime: "2025-01-05T08:00:00Z"},
				},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockDrive) connector() *Connector {
	c := NewWithServiceFactory(func(ctx context.Context, _ string) (*drive.Service, error) {
		return drive.NewService(ctx,
			option.WithoutAuthentication(),
			option.WithEndpoint(m.server.URL),
		)
	})
	c.SetParameters(domain.ConnectorParameters{oauth.KeyToken: "tok"})
	return c
}

func TestFilesFollowsPageToken(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	results, err := c.Files(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "doc-1", items[0].OriginalID)
	assert.Equal(t, "bin-1", items[1].OriginalID)
	assert.Len(t, mock.queries, 2)
}

func TestFilesFlagsWorkspaceDocumentsForExport(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	results, err := c.Files(context.Background(), "")
	require.NoError(t, err)
	items, err := driven.AllItems(context.Background(), results)
	require.NoError(t, err)

	assert.Equal(t, "yes", items[0].Metadata["needsPdfConversion"])
	assert.Equal(t, "application/pdf", items[0].Metadata["mimeType"])
	assert.Equal(t, "no", items[1].Metadata["needsPdfConversion"])
	assert.Equal(t, "application/pdf", items[1].Metadata["mimeType"])
}

func TestFilesQueryExcludesFolders(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	_, err := c.Files(context.Background(), "report")
	require.NoError(t, err)

	require.NotEmpty(t, mock.queries)
	q := mock.queries[0]
	assert.Contains(t, q, "name contains 'report'")
	assert.Contains(t, q, "not mimeType = 'application/vnd.google-apps.folder'")
}

func TestFoldersQuerySelectsFolders(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	_, err := c.Folders(context.Background(), "")
	require.NoError(t, err)

	require.NotEmpty(t, mock.queries)
	assert.Equal(t, "mimeType = 'application/vnd.google-apps.folder'", mock.queries[0])
}

func TestLastModifiedScopesToParentFolder(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	folders := []domain.SyncItem{{OriginalID: "folder-9", IsFolder: true}}
	items, err := c.LastModified(context.Background(), "2025-02-01T00:00:00Z", folders)
	require.NoError(t, err)

	// Only the March document is newer than the watermark.
	require.Len(t, items, 1)
	assert.Equal(t, "doc-1", items[0].OriginalID)

	require.NotEmpty(t, mock.queries)
	assert.Contains(t, mock.queries[0], "'folder-9' in parents")
}

func TestDownloadExportsWorkspaceDocument(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	body, err := c.Download(context.Background(), domain.SyncItem{
		OriginalID: "doc-1",
		Metadata:   map[string]string{"needsPdfConversion": "yes"},
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestDownloadFetchesBinaryContent(t *testing.T) {
	mock := newMockDrive(t)
	c := mock.connector()

	body, err := c.Download(context.Background(), domain.SyncItem{
		OriginalID: "bin-1",
		Metadata:   map[string]string{"needsPdfConversion": "no"},
	})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "raw bytes", string(data))
}

func TestLinkIsUnsupported(t *testing.T) {
	c := newMockDrive(t).connector()
	_, err := c.Link(context.Background(), domain.SyncItem{OriginalID: "doc-1"})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}
