package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/casklane/stockfeed/internal/driver"
	"github.com/casklane/stockfeed/internal/lock"
	"github.com/casklane/stockfeed/internal/supervisor"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Mode        string
	Files       []string
	RunID       string
	Target      string
	AsOf        string
	Timeout     time.Duration
	TriggeredBy string
}

// NewRunCommand creates the driver command. The process exits 0 whenever
// the driver ran to completion; per-file failures live in the status
// document, not the exit code.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daily import driver",
		Long: `Acquire the system-wide import lock, pick the input spreadsheets
(auto = newest eligible file in the inbox; files = explicit list),
supervise one worker per file and publish an aggregate status document
under the given run id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDriver(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", driver.ModeAuto, "file selection: auto|files")
	cmd.Flags().StringSliceVar(&opts.Files, "files", nil, "explicit input files (files mode)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "caller-assigned run identifier (default: generated)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "supplier/source identifier (default from config)")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "business date (YYYY-MM-DD, default today)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-worker wall-clock timeout (default from config)")
	cmd.Flags().StringVar(&opts.TriggeredBy, "triggered-by", "cli", "actor recorded on the runs")

	return cmd
}

func runDriver(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()

	if _, err := parseAsOf(opts.AsOf); err != nil {
		return err
	}

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	target := opts.Target
	if target == "" {
		target = a.cfg.Importer.Target
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.cfg.Importer.Timeout
	}

	store, err := supervisor.NewStore(a.cfg.Importer.StatusDir)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate own executable: %w", err)
	}

	d := driver.New(
		lock.NewPostgresLocker(a.conn.Pool),
		supervisor.New(store),
		store,
		a.cfg.Importer,
	)

	doc, err := d.Run(ctx, driver.Options{
		Mode:    opts.Mode,
		Files:   opts.Files,
		RunID:   opts.RunID,
		Timeout: timeout,
		WorkerArgs: func(runID, file string) []string {
			args := []string{
				self, "worker",
				"--config", opts.ConfigPath,
				"--file", file,
				"--run-id", runID,
				"--target", target,
				"--triggered-by", opts.TriggeredBy,
			}
			if opts.AsOf != "" {
				args = append(args, "--as-of", opts.AsOf)
			}
			return args
		},
	})
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode driver status: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(payload))
	return nil
}
