package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/syncbridge/internal/adapters/driven/config/file"
	storagefile "github.com/custodia-labs/syncbridge/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	RunE:  runSources,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
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

	sources, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	if sourcesJSON {
		encoded, err := json.MarshalIndent(sources, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
		return nil
	}

	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}

	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		source := sources[id]
		cmd.Printf("%s  connector=%s  items=%d  pending=%d  uploaded=%d  permanent=%t\n",
			id, source.ConnectorID, len(source.Items), countStatus(source, domain.StatusPending),
			source.Total, source.PermanentSync)
	}
	return nil
}

func countStatus(source domain.Source, status domain.FileStatus) int {
	n := 0
	for _, item := range source.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}
