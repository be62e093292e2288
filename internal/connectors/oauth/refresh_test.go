package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

func TestRefreshFormReplacesTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		assert.Equal(t, "app-id", r.Form.Get("client_id"))
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh"}`))
	}))
	defer ts.Close()

	params := domain.ConnectorParameters{
		KeyToken:    "old-access",
		KeyRefresh:  "old-refresh",
		KeyClientID: "app-id",
	}

	ok, err := NewRefresher().RefreshForm(context.Background(), params, ts.URL, "files.read offline_access")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new-access", params.String(KeyToken))
	assert.Equal(t, "new-refresh", params.String(KeyRefresh))
}

func TestRefreshFormWithoutTokenClearsBoth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer ts.Close()

	params := domain.ConnectorParameters{KeyToken: "a", KeyRefresh: "b"}
	ok, err := NewRefresher().RefreshForm(context.Background(), params, ts.URL, "scope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, params.String(KeyToken))
	assert.Empty(t, params.String(KeyRefresh))
}

func TestRefreshEndpointUpdatesToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "r-tok", r.URL.Query().Get("refresh_token"))
		w.Write([]byte(`{"token":"fresh"}`))
	}))
	defer ts.Close()

	params := domain.ConnectorParameters{
		KeyToken:           "stale",
		KeyRefresh:         "r-tok",
		KeyRefreshEndpoint: ts.URL,
	}
	ok, err := NewRefresher().RefreshEndpoint(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fresh", params.String(KeyToken))
}

func TestRefreshEndpointFailureClearsTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	params := domain.ConnectorParameters{
		KeyToken:           "stale",
		KeyRefresh:         "r-tok",
		KeyRefreshEndpoint: ts.URL,
	}
	ok, err := NewRefresher().RefreshEndpoint(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, params.String(KeyToken))
	assert.Empty(t, params.String(KeyRefresh))
}
