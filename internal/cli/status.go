package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/casklane/stockfeed/internal/config"
	"github.com/casklane/stockfeed/internal/supervisor"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status inspection command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status document for a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, err := supervisor.NewStore(cfg.Importer.StatusDir)
			if err != nil {
				return err
			}

			doc, found, err := store.Read(runID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no status record for run %s", runID)
			}

			payload, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode status: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(payload))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier to inspect")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}
