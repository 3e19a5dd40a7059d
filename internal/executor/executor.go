package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/sourceplane/liteflow/internal/fresh"
	"github.com/sourceplane/liteflow/internal/model"
)

// Runner executes a single job's action. The scheduler honors the job's
// resource reservation; the runner does not enforce it internally.
type Runner interface {
	Run(ctx context.Context, job *model.Job) error
}

// ActionError reports a job whose underlying action exited non-zero.
type ActionError struct {
	JobID string
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("job %s: action failed: %v", e.JobID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// TimeoutError reports a job that exceeded its declared time budget.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s: timed out after %s", e.JobID, e.Timeout)
}

// MissingOutputError reports a job whose action claimed success while a
// declared output is absent. Success is defined by output presence, not
// by the action's own exit signal.
type MissingOutputError struct {
	JobID string
	Path  string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("job %s: action succeeded but output %s is missing", e.JobID, e.Path)
}

// ShellRunner executes job commands through the shell in a working
// directory, streaming tool output to the injected writers.
type ShellRunner struct {
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
	DryRun  bool
	FS      fresh.StatFS
}

func NewShellRunner(workDir string, stdout, stderr io.Writer, dryRun bool) *ShellRunner {
	return &ShellRunner{
		WorkDir: workDir,
		Stdout:  stdout,
		Stderr:  stderr,
		DryRun:  dryRun,
		FS:      fresh.Dir(workDir),
	}
}

func (r *ShellRunner) Run(ctx context.Context, job *model.Job) error {
	if r.DryRun {
		fmt.Fprintf(r.Stdout, "    %s\n", job.Command)
		return nil
	}

	runCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", job.Command)
	cmd.Dir = r.WorkDir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{JobID: job.ID, Timeout: job.Timeout}
		}
		return &ActionError{JobID: job.ID, Err: err}
	}

	return r.verifyOutputs(job)
}

// verifyOutputs confirms every declared output exists before completion is
// signaled, so dependents never observe a half-produced job.
func (r *ShellRunner) verifyOutputs(job *model.Job) error {
	for _, out := range job.Outputs {
		info, err := r.FS.Stat(out)
		if err != nil {
			return fmt.Errorf("job %s: stat output %s: %w", job.ID, out, err)
		}
		if !info.Exists {
			return &MissingOutputError{JobID: job.ID, Path: out}
		}
	}
	return nil
}
