// Package cron is the scheduling engine: it owns the job table,
// evaluates which jobs are due each minute, dispatches their payloads
// (shell commands or prompts routed to an agent executor), and records
// every execution through a pluggable Store.
package cron

import (
	"time"

	"github.com/google/uuid"
)

// JobType selects the payload kind.
type JobType string

const (
	// JobShell runs Command through the shell.
	JobShell JobType = "shell"
	// JobAgent sends Command as a prompt to the configured AgentExecutor.
	JobAgent JobType = "agent"
)

// JobStatus is the administrative lifecycle state. Running is not a
// job status; it is an ephemeral per-execution marker.
type JobStatus string

const (
	StatusActive JobStatus = "active"
	StatusPaused JobStatus = "paused"
)

// AgentJobConfig carries the agent settings for a JobAgent job.
type AgentJobConfig struct {
	Model        string `json:"model" yaml:"model"`
	APIKey       string `json:"api_key" yaml:"api_key"`
	Workspace    string `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// Job is one scheduled unit of work. The Store owns the canonical
// record; the engine works on copies and reconciles through the Store
// on every mutation. ID is the only lookup key — Name is a label and
// need not be unique.
type Job struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Schedule    string            `json:"schedule"`
	Type        JobType           `json:"type"`
	Command     string            `json:"command"` // shell command, or agent prompt
	AgentConfig *AgentJobConfig   `json:"agent_config,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	WorkingDir  string            `json:"working_dir,omitempty"`
	Timeout     time.Duration     `json:"timeout_ns,omitempty"` // 0 disables the deadline
	Status      JobStatus         `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	LastRun     *time.Time        `json:"last_run,omitempty"`
	NextRun     *time.Time        `json:"next_run,omitempty"`
	RunCount    int               `json:"run_count"`
	FailCount   int               `json:"fail_count"`
}

// Clone returns a deep copy, so Store implementations can hand out
// records without aliasing their internal state.
func (j *Job) Clone() *Job {
	c := *j
	if j.AgentConfig != nil {
		cfg := *j.AgentConfig
		c.AgentConfig = &cfg
	}
	if j.Env != nil {
		c.Env = make(map[string]string, len(j.Env))
		for k, v := range j.Env {
			c.Env[k] = v
		}
	}
	if j.LastRun != nil {
		t := *j.LastRun
		c.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		c.NextRun = &t
	}
	return &c
}

// ExecStatus is the outcome of one execution.
type ExecStatus string

const (
	ExecRunning   ExecStatus = "running"
	ExecSuccess   ExecStatus = "success"
	ExecFailed    ExecStatus = "failed"
	ExecCancelled ExecStatus = "cancelled"
)

// Execution is one run of a job. Records are append-only: once a
// record reaches a terminal status it is never mutated in the Store.
type Execution struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Stdout     string     `json:"stdout,omitempty"`
	Stderr     string     `json:"stderr,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"` // absent for agent jobs and abnormal termination
	Status     ExecStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// Clone returns a deep copy of the record.
func (e *Execution) Clone() *Execution {
	c := *e
	if e.FinishedAt != nil {
		t := *e.FinishedAt
		c.FinishedAt = &t
	}
	if e.ExitCode != nil {
		v := *e.ExitCode
		c.ExitCode = &v
	}
	return &c
}

func newExecution(jobID string, now time.Time) *Execution {
	return &Execution{
		ID:        uuid.NewString(),
		JobID:     jobID,
		StartedAt: now,
		Status:    ExecRunning,
	}
}

// complete finishes the record from a shell exit: zero is success,
// anything else a failure.
func (e *Execution) complete(exitCode int, stdout, stderr string, now time.Time) {
	e.FinishedAt = &now
	e.ExitCode = &exitCode
	e.Stdout = stdout
	e.Stderr = stderr
	if exitCode == 0 {
		e.Status = ExecSuccess
	} else {
		e.Status = ExecFailed
	}
}

// fail finishes the record without an exit code.
func (e *Execution) fail(msg string, now time.Time) {
	e.FinishedAt = &now
	e.Status = ExecFailed
	e.Error = msg
}

// cancel finishes the record after a timeout or cancellation.
func (e *Execution) cancel(msg string, now time.Time) {
	e.FinishedAt = &now
	e.Status = ExecCancelled
	e.Error = msg
}
