package cron

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cronbox/cronbox/internal/telemetry"
)

// dispatch runs the job's payload and returns a completed execution
// record. It never returns nil and never panics: faults inside the
// payload are converted into Failure records at this boundary. The
// caller holds the job's running marker for the full duration; no
// table lock is held here.
func (m *Manager) dispatch(ctx context.Context, job *Job) (rec *Execution) {
	start := time.Now().UTC()
	rec = newExecution(job.ID, start)

	ctx, span := telemetry.StartExecuteSpan(ctx, job.ID, job.Name)

	m.publish(Event{Type: EventJobStarted, JobID: job.ID, ExecutionID: rec.ID})
	m.logger.Debug("cron: dispatch started", "job", job.ID, "execution", rec.ID, "type", job.Type)

	defer func() {
		if r := recover(); r != nil {
			rec.fail(fmt.Sprintf("cron: dispatch panic: %v", r), time.Now().UTC())
		}
		dur := time.Since(start)
		telemetry.EndExecuteSpan(span, string(rec.Status), dur)
		telemetry.RecordJobExecution(ctx, job.Name, string(rec.Status), dur.Seconds())
	}()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	switch job.Type {
	case JobAgent:
		m.dispatchAgent(ctx, job, rec)
	default:
		m.dispatchShell(ctx, job, rec)
	}
	return rec
}

// dispatchShell spawns the command through the shell and captures the
// separated output streams and exit code.
func (m *Manager) dispatchShell(ctx context.Context, job *Job, rec *Execution) {
	cmd := exec.CommandContext(ctx, "sh", "-c", job.Command)
	cmd.Dir = m.workdirFor(job)
	if len(job.Env) > 0 {
		env := os.Environ()
		for k, v := range job.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	now := time.Now().UTC()
	rec.Stdout = stdout.String()
	rec.Stderr = stderr.String()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rec.cancel("cron: dispatch deadline exceeded", now)
	case errors.Is(ctx.Err(), context.Canceled):
		rec.cancel("cron: dispatch cancelled", now)
	case err == nil:
		rec.complete(0, rec.Stdout, rec.Stderr, now)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rec.complete(exitErr.ExitCode(), rec.Stdout, rec.Stderr, now)
		} else {
			// The process never started; no exit code to record.
			rec.fail(fmt.Sprintf("cron: start command: %v", err), now)
		}
	}
}

// dispatchAgent routes the prompt through the injected executor. Exit
// code stays absent; the executor's response text takes the place of
// stdout. A missing executor is a configuration error recorded as a
// Failure so the audit trail reflects the miss.
func (m *Manager) dispatchAgent(ctx context.Context, job *Job, rec *Execution) {
	m.mu.Lock()
	executor := m.executor
	m.mu.Unlock()

	if executor == nil {
		rec.fail(ErrNoAgentExecutor.Error(), time.Now().UTC())
		return
	}
	if job.AgentConfig == nil {
		rec.fail("cron: agent job missing agent config", time.Now().UTC())
		return
	}

	text, err := executor.Execute(ctx, *job.AgentConfig, job.Command, m.workdirFor(job))
	now := time.Now().UTC()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rec.cancel("cron: dispatch deadline exceeded", now)
	case err != nil:
		rec.fail("cron: agent executor: "+err.Error(), now)
	default:
		rec.FinishedAt = &now
		rec.Status = ExecSuccess
		rec.Stdout = text
	}
}

// workdirFor resolves the working directory: the job's own, then the
// agent workspace, then the manager default.
func (m *Manager) workdirFor(job *Job) string {
	if job.WorkingDir != "" {
		return job.WorkingDir
	}
	if job.Type == JobAgent && job.AgentConfig != nil && job.AgentConfig.Workspace != "" {
		return job.AgentConfig.Workspace
	}
	return m.workspace
}
