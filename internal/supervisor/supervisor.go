// Package supervisor runs imports as child processes under a hard
// wall-clock deadline and maintains the polling-safe status documents.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// maxRawOutput bounds how much worker output a status document retains.
// Malformed output is kept for diagnosis but never unbounded.
const maxRawOutput = 4096

// DefaultKillGrace is how long a timed-out child gets between SIGTERM and
// SIGKILL.
const DefaultKillGrace = 5 * time.Second

// Job describes one supervised worker invocation.
type Job struct {
	RunID   string
	Argv    []string
	Timeout time.Duration
}

// WorkerResult is the structured line a well-behaved worker prints as its
// last stdout line.
type WorkerResult struct {
	RunID   string  `json:"run_id"`
	Status  Status  `json:"status"`
	Summary Summary `json:"summary"`
	Error   string  `json:"error,omitempty"`
}

// Supervisor launches workers and owns their status documents.
type Supervisor struct {
	store     *Store
	killGrace time.Duration
}

// New creates a supervisor writing status documents through store.
func New(store *Store) *Supervisor {
	return &Supervisor{store: store, killGrace: DefaultKillGrace}
}

// Run executes the job to completion, timeout or crash, always leaving a
// readable status document behind. The RUNNING record is written
// synchronously before the worker starts so an immediate poll never sees
// "not found". The returned document is the final published state.
func (s *Supervisor) Run(ctx context.Context, job Job) (StatusDocument, error) {
	if len(job.Argv) == 0 {
		return StatusDocument{}, fmt.Errorf("job %s has no command", job.RunID)
	}

	startedAt := time.Now().UTC()
	doc := StatusDocument{
		RunID:     job.RunID,
		Status:    StatusRunning,
		StartedAt: startedAt,
	}
	if err := s.store.Write(doc); err != nil {
		return StatusDocument{}, fmt.Errorf("failed to publish RUNNING status: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(job.Argv[0], job.Argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// A killed worker can leave an orphaned grandchild holding the stdout
	// pipe; WaitDelay stops Wait from blocking on it forever.
	cmd.WaitDelay = s.killGrace

	if err := cmd.Start(); err != nil {
		return s.finish(doc, StatusFailed, fmt.Sprintf("failed to start worker: %v", err), "")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return s.interpret(job, doc, waitErr, stdout.Bytes(), stderr.Bytes())
	case <-ctx.Done():
		s.terminate(job, cmd, done)
		return s.finish(doc, StatusFailed, fmt.Sprintf("supervisor cancelled: %v", ctx.Err()), truncate(stdout.String()))
	case <-timer.C:
		s.terminate(job, cmd, done)
		return s.finish(doc, StatusTimeout,
			fmt.Sprintf("worker exceeded timeout of %s", timeout), truncate(stdout.String()))
	}
}

// terminate escalates: SIGTERM, a short grace, then SIGKILL, and only
// returns once Wait has reaped the child. No process survives this.
func (s *Supervisor) terminate(job Job, cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}

	log.Printf("[SUPERVISOR] run %s: sending SIGTERM to pid %d", job.RunID, cmd.Process.Pid)
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-done:
		return
	case <-time.After(s.killGrace):
	}

	log.Printf("[SUPERVISOR] run %s: pid %d did not exit, sending SIGKILL", job.RunID, cmd.Process.Pid)
	_ = cmd.Process.Kill()
	<-done
}

// interpret converts the worker's exit into a final status document. A
// crash (non-zero exit) still becomes a document rather than a lost event.
func (s *Supervisor) interpret(job Job, doc StatusDocument, waitErr error, stdout, stderr []byte) (StatusDocument, error) {
	if waitErr != nil {
		raw := truncate(string(stdout) + string(stderr))
		return s.finish(doc, StatusFailed, fmt.Sprintf("worker crashed: %v", waitErr), raw)
	}

	result, err := parseWorkerResult(stdout)
	if err != nil {
		return s.finish(doc, StatusFailed,
			fmt.Sprintf("malformed worker output: %v", err), truncate(string(stdout)))
	}

	if result.RunID != "" && result.RunID != job.RunID {
		return s.finish(doc, StatusFailed,
			fmt.Sprintf("worker reported run id %s, expected %s", result.RunID, job.RunID),
			truncate(string(stdout)))
	}

	doc.Summary = result.Summary
	switch result.Status {
	case StatusOK, StatusOKWithSkips, StatusFailed:
		return s.finish(doc, result.Status, result.Error, "")
	default:
		return s.finish(doc, StatusFailed,
			fmt.Sprintf("worker reported unknown status %q", result.Status), truncate(string(stdout)))
	}
}

func (s *Supervisor) finish(doc StatusDocument, status Status, errMsg, rawOutput string) (StatusDocument, error) {
	finishedAt := time.Now().UTC()
	doc.Status = status
	doc.FinishedAt = &finishedAt
	doc.Error = errMsg
	doc.RawOutput = rawOutput

	if err := s.store.Write(doc); err != nil {
		return doc, fmt.Errorf("failed to publish %s status: %w", status, err)
	}
	return doc, nil
}

// parseWorkerResult reads the last non-empty stdout line as JSON. Workers
// may log freely before it; only the final line is the contract.
func parseWorkerResult(stdout []byte) (WorkerResult, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var result WorkerResult
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			return WorkerResult{}, fmt.Errorf("last output line is not a result object: %w", err)
		}
		return result, nil
	}
	return WorkerResult{}, fmt.Errorf("worker produced no output")
}

func truncate(raw string) string {
	if len(raw) <= maxRawOutput {
		return raw
	}
	return raw[:maxRawOutput] + "... [truncated]"
}
