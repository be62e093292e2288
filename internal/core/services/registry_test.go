package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

func TestRegistryKnowsBuiltinConnectors(t *testing.T) {
	r := NewConnectorRegistry()

	for _, id := range []string{"folder", "sitemap", "dropbox", "gdrive", "onedrive", "sharepoint", "confluence"} {
		conn, err := r.New(id)
		require.NoError(t, err, id)
		assert.NotNil(t, conn, id)
	}
}

func TestRegistryRejectsUnknownID(t *testing.T) {
	r := NewConnectorRegistry()
	_, err := r.New("gopher-drive")
	assert.ErrorIs(t, err, domain.ErrUnknownConnector)
}

func TestRegistryRegisterOverrides(t *testing.T) {
	r := NewConnectorRegistry()
	stub := &stubConnector{external: true}
	r.Register("folder", func() driven.Connector { return stub })

	conn, err := r.New("folder")
	require.NoError(t, err)
	assert.True(t, conn.IsExternal())
}
