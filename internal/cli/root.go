// Package cli wires the stockfeed job-invocation surface: the driver,
// the supervised worker, the reaper sweep, status inspection and the
// status polling server.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/casklane/stockfeed/internal/config"
	"github.com/casklane/stockfeed/internal/db"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the stockfeed CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockfeedd",
		Short: "Governed spreadsheet imports for the catalog store",
		Long: `stockfeedd ingests supplier price/inventory spreadsheets into the
catalog under an import-run ledger: the same file is never imported
twice, concurrent imports for one target are blocked, crashed imports
are reclaimed, and bad rows are quarantined.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", ".", "directory containing config.yaml")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewReapCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// app bundles the shared runtime pieces most commands need.
type app struct {
	cfg  config.Config
	conn *db.Connection
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &app{cfg: cfg, conn: conn}, nil
}

func (a *app) Close() {
	a.conn.Close()
}

// parseAsOf interprets the --as-of flag; empty means today (UTC).
func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q (want YYYY-MM-DD): %w", raw, err)
	}
	return asOf, nil
}
