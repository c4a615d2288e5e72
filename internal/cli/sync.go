package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/YOROBIZ/sentimentiq/internal/app"
	"github.com/YOROBIZ/sentimentiq/internal/source"
)

var syncSources string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new feedback from the configured sources once",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSources, "sources", "", "comma separated sources to sync (default all)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var results []source.SyncResult
	if names := app.ParseSourceList(syncSources); len(names) > 0 {
		for _, name := range names {
			result, err := a.Syncer.SyncOne(ctx, name)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
	} else {
		results = a.Syncer.SyncAll(ctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
