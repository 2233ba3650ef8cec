package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/casklane/stockfeed/internal/domain"
	"github.com/casklane/stockfeed/internal/ingestion"
	"github.com/casklane/stockfeed/internal/orchestrator"
	"github.com/casklane/stockfeed/internal/repository"
	"github.com/casklane/stockfeed/internal/supervisor"

	"github.com/spf13/cobra"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	*RootOptions
	File        string
	RunID       string
	Target      string
	AsOf        string
	TriggeredBy string
}

// NewWorkerCommand creates the supervised child command. It performs one
// governed import and prints a single JSON result line as its final
// stdout output; import failures are encoded in that result, not in the
// exit code.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one governed import (invoked by the supervisor)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "spreadsheet to import")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "supervisor-assigned run identifier")
	cmd.Flags().StringVar(&opts.Target, "target", "", "supplier/source identifier")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "business date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.TriggeredBy, "triggered-by", "worker", "actor recorded on the run")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("run-id")

	return cmd
}

func runWorker(cmd *cobra.Command, opts *WorkerOptions) error {
	ctx := cmd.Context()

	asOf, err := parseAsOf(opts.AsOf)
	if err != nil {
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

	runs := repository.NewImportRunRepository(a.conn.Pool)
	envelopes := repository.NewEnvelopeRepository(a.conn.Pool)
	importer := ingestion.NewImporter(
		repository.NewCatalogRepository(),
		repository.NewQuarantineRepository(a.conn.Pool),
	)

	runner := orchestrator.NewRunner(runs, envelopes, a.conn, importer.Import)

	result, err := runner.Execute(ctx, orchestrator.Request{
		Target:         target,
		FilePath:       opts.File,
		SourceFilename: filepath.Base(opts.File),
		AsOfDate:       asOf,
		TriggeredBy:    opts.TriggeredBy,
		ProcessingMode: domain.ProcessingModeAtomic,
	})
	if err != nil {
		// Setup failure before a run existed; a non-zero exit lets the
		// supervisor convert this into a FAILED status document.
		return fmt.Errorf("worker setup failed: %w", err)
	}

	workerResult := toWorkerResult(opts.RunID, result)
	payload, err := json.Marshal(workerResult)
	if err != nil {
		return fmt.Errorf("failed to encode worker result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(payload))
	return nil
}

func toWorkerResult(runID string, result orchestrator.Result) supervisor.WorkerResult {
	wr := supervisor.WorkerResult{RunID: runID}
	wr.Summary.TotalFiles = 1

	switch result.Outcome {
	case orchestrator.OutcomeImported:
		wr.Status = supervisor.StatusOK
		wr.Summary.ImportedFiles = 1
		wr.Summary.RowsProcessed = result.Metrics[domain.MetricRowsProcessed]
		wr.Summary.RowsQuarantined = result.Metrics[domain.MetricRowsQuarantined]
	case orchestrator.OutcomeSkipped:
		wr.Status = supervisor.StatusOKWithSkips
		wr.Summary.SkippedFiles = 1
		wr.Error = result.Reason
	default:
		wr.Status = supervisor.StatusFailed
		wr.Summary.FailedFiles = 1
		wr.Error = result.ErrSummary
	}
	return wr
}
