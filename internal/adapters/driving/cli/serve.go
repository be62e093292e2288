package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/syncbridge/internal/adapters/driven/config/file"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/kb"
	storagefile "github.com/custodia-labs/syncbridge/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/syncbridge/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/syncbridge/internal/connectors/remote"
	"github.com/custodia-labs/syncbridge/internal/core/services"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// defaultListenAddr binds the control server to loopback only.
const defaultListenAddr = "127.0.0.1:8090"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the synchronisation engine and the local control API",
	Long: `Starts the polling loop and the local control server. The loop uploads
pending items every few seconds and collects modified content from
permanent sources hourly; the control server accepts source configuration
on the loopback interface. Runs until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	config, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open configuration: %w", err)
	}

	dataDir := config.GetString(configfile.KeyDataDir)
	if dataDir == "" {
		dataDir = defaultDataDir()
	}
	store, err := storagefile.NewSourceStore(dataDir)
	if err != nil {
		return fmt.Errorf("open source store: %w", err)
	}

	registry := services.NewConnectorRegistry()
	loader := remote.NewLoader(config.GetString(configfile.KeyManifestURL), dataDir)
	orchestrator := services.NewOrchestrator(store, registry, kb.Factory, loader)
	server := httpapi.NewServer(services.NewSourceService(store))

	addr := config.GetString(configfile.KeyListenAddr)
	if addr == "" {
		addr = defaultListenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(addr)
	}()
	go func() {
		errCh <- orchestrator.Run(ctx)
	}()

	logger.Info("syncbridge listening on %s, data in %s", addr, dataDir)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syncbridge"
	}
	return filepath.Join(home, ".syncbridge")
}
