package cli

import (
	"fmt"
	"os"

	"github.com/casklane/stockfeed/internal/reaper"
	"github.com/casklane/stockfeed/internal/repository"

	"github.com/spf13/cobra"
)

// NewReapCommand creates the stale-run sweep command, meant to be run
// from an external scheduler (cron or similar).
func NewReapCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Reclaim runs stuck in pending/running past their grace period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			r := reaper.New(
				repository.NewImportRunRepository(a.conn.Pool),
				a.cfg.Importer.RunningGrace,
				a.cfg.Importer.PendingGrace,
			)

			reclaimed, err := r.Sweep(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "reclaimed %d stale run(s)\n", len(reclaimed))
			return nil
		},
	}
	return cmd
}
