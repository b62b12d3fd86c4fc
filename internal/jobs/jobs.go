// Package jobs is a per-session background job queue. Jobs are appended to
// jobs/pending.jsonl, executed later through the action runner, and moved to
// jobs/completed.jsonl.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielwarnersmith/trace/internal/action"
	"github.com/danielwarnersmith/trace/internal/jsonl"
	"github.com/danielwarnersmith/trace/internal/session"
)

// Files under <session>/jobs/.
const (
	Dir           = "jobs"
	PendingFile   = "pending.jsonl"
	CompletedFile = "completed.jsonl"
)

// Status of a job line.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one queued unit of work. Type is the action id it runs.
type Job struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Payload     map[string]string `json:"payload,omitempty"`
	CreatedAt   string            `json:"created_at"`
	Status      Status            `json:"status"`
	RunID       string            `json:"run_id,omitempty"`
	Error       string            `json:"error,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

func jobsDir(d *session.Dir) string { return filepath.Join(d.Path(), Dir) }

// Add appends a pending job and returns its id.
func Add(d *session.Dir, jobType string, payload map[string]string) (string, error) {
	if jobType == "" {
		return "", fmt.Errorf("%w: job type is required", session.ErrInvalidInput)
	}
	if _, err := d.Doc(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(jobsDir(d), 0o755); err != nil {
		return "", fmt.Errorf("failed to create jobs directory: %w", err)
	}
	job := Job{
		ID:        d.NewID(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: session.Timestamp(d.Now()),
		Status:    StatusPending,
	}
	if err := jsonl.Append(filepath.Join(jobsDir(d), PendingFile), job); err != nil {
		return "", fmt.Errorf("failed to queue job: %w", err)
	}
	return job.ID, nil
}

// Pending returns the jobs waiting to run, in queue order.
func Pending(d *session.Dir) ([]Job, error) {
	return read(filepath.Join(jobsDir(d), PendingFile))
}

// Completed returns finished jobs, in completion order.
func Completed(d *session.Dir) ([]Job, error) {
	return read(filepath.Join(jobsDir(d), CompletedFile))
}

func read(path string) ([]Job, error) {
	out, lineErrs, err := jsonl.ReadAll[Job](path)
	if err != nil {
		return nil, err
	}
	if len(lineErrs) > 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), lineErrs[0])
	}
	return out, nil
}

// Process runs pending jobs through runner and returns how many it handled.
// With once set only the first job runs. A failing job is still moved to
// completed.jsonl with status failed; Process only returns an error when the
// queue itself cannot be read or written.
func Process(ctx context.Context, d *session.Dir, runner *action.Runner, once bool) (int, error) {
	pending, err := Pending(d)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	todo := pending
	if once {
		todo = pending[:1]
	}

	completedPath := filepath.Join(jobsDir(d), CompletedFile)
	done := 0
	for _, job := range todo {
		if err := ctx.Err(); err != nil {
			break
		}
		res, runErr := runner.Run(ctx, d, job.Type, job.Payload)
		if res.ID == "" {
			// The run was never recorded; leave the job queued.
			return done, errors.Join(runErr, rewrite(d, pending[done:]))
		}
		job.RunID = res.ID
		job.CompletedAt = session.Timestamp(d.Now())
		if runErr != nil {
			job.Status = StatusFailed
			job.Error = runErr.Error()
			runner.Logger.Warn("job failed", "job", job.ID, "type", job.Type, "err", runErr)
		} else {
			job.Status = StatusCompleted
			runner.Logger.Debug("job completed", "job", job.ID, "type", job.Type)
		}
		if err := jsonl.Append(completedPath, job); err != nil {
			return done, errors.Join(fmt.Errorf("failed to record job %s: %w", job.ID, err), rewrite(d, pending[done:]))
		}
		done++
	}
	return done, rewrite(d, pending[done:])
}

func rewrite(d *session.Dir, remaining []Job) error {
	var buf []byte
	for _, job := range remaining {
		line, err := jsonl.Marshal(job)
		if err != nil {
			return err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return session.WriteFileAtomic(filepath.Join(jobsDir(d), PendingFile), buf)
}
