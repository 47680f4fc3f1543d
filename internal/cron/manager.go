package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cronbox/cronbox/internal/expr"
	"github.com/google/uuid"
)

// DefaultTimeout is applied to new jobs when no timeout is given.
const DefaultTimeout = time.Minute

// Config holds the Manager dependencies. Store is required; everything
// else has a sensible default.
type Config struct {
	Store          Store
	Logger         *slog.Logger
	Workspace      string        // default working directory for dispatches
	DefaultTimeout time.Duration // 0 selects DefaultTimeout; negative disables
	TickInterval   time.Duration // loop cadence; 0 selects one minute. Faster cadences re-check sooner but never re-fire an evaluated minute.
}

// Manager is the public surface of the engine: job CRUD, manual runs,
// history access, executor injection, and the tick loop. All
// administrative mutations are linearizable per job id; the tick loop
// and individual dispatches share the job table only through the
// Store.
type Manager struct {
	store          Store
	logger         *slog.Logger
	workspace      string
	defaultTimeout time.Duration
	tickInterval   time.Duration

	mu       sync.Mutex // guards executor, subs, locks, loop state
	executor AgentExecutor
	locks    map[string]*sync.Mutex // per-job-id running marker
	subs     []chan Event
	cancel   context.CancelFunc
	loopDone chan struct{}

	// adminMu serializes read-modify-write mutations of job records.
	// It is held only across the check-and-set, never across dispatch.
	adminMu sync.Mutex

	// wg tracks in-flight tick dispatches so Stop can drain them.
	wg sync.WaitGroup

	// lastTick is the most recent minute a tick evaluated. Only the
	// tick caller touches it; ticks never run concurrently.
	lastTick time.Time
}

// NewManager creates a Manager. The scheduler loop does not run until
// Start is called; CRUD and RunJob work without it.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = DefaultTimeout
	} else if timeout < 0 {
		timeout = 0
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}
	return &Manager{
		store:          cfg.Store,
		logger:         logger,
		workspace:      cfg.Workspace,
		defaultTimeout: timeout,
		tickInterval:   tick,
		locks:          make(map[string]*sync.Mutex),
	}
}

// SetAgentExecutor injects the capability that runs agent-job prompts.
func (m *Manager) SetAgentExecutor(e AgentExecutor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executor = e
}

// runLock returns the running marker for a job id, creating it on
// first use. Markers are kept after job removal; they are tiny and a
// late dispatch may still hold one.
func (m *Manager) runLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// AddJob validates the schedule and persists a new shell job.
func (m *Manager) AddJob(ctx context.Context, name, schedule, command string) (*Job, error) {
	return m.addJob(ctx, name, schedule, command, JobShell, nil)
}

// AddAgentJob validates the schedule and persists a new agent job
// whose command is the prompt.
func (m *Manager) AddAgentJob(ctx context.Context, name, schedule, prompt string, cfg AgentJobConfig) (*Job, error) {
	return m.addJob(ctx, name, schedule, prompt, JobAgent, &cfg)
}

func (m *Manager) addJob(ctx context.Context, name, schedule, command string, typ JobType, agentCfg *AgentJobConfig) (*Job, error) {
	sched, err := expr.Parse(schedule)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Name:        name,
		Schedule:    schedule,
		Type:        typ,
		Command:     command,
		AgentConfig: agentCfg,
		WorkingDir:  "",
		Timeout:     m.defaultTimeout,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if next, err := sched.Next(now); err == nil {
		job.NextRun = &next
	}

	m.adminMu.Lock()
	defer m.adminMu.Unlock()
	if err := m.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("cron: save job: %w", err)
	}

	m.logger.Info("cron: job added", "job", job.ID, "name", job.Name, "schedule", job.Schedule, "type", job.Type)
	return job, nil
}

// GetJob returns the job by id.
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	return m.store.LoadJob(ctx, id)
}

// ListJobs returns all jobs in the store's stable order.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	return m.store.ListJobs(ctx)
}

// JobUpdate names the mutable fields of UpdateJob. Nil fields are left
// unchanged.
type JobUpdate struct {
	Schedule *string
	Command  *string
	Timeout  *time.Duration
}

// UpdateJob applies the update atomically. A new schedule is
// re-parsed; the job keeps its Active/Paused status.
func (m *Manager) UpdateJob(ctx context.Context, id string, upd JobUpdate) (*Job, error) {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	job, err := m.store.LoadJob(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if upd.Schedule != nil {
		sched, err := expr.Parse(*upd.Schedule)
		if err != nil {
			return nil, err
		}
		job.Schedule = *upd.Schedule
		job.NextRun = nil
		if next, err := sched.Next(now); err == nil {
			job.NextRun = &next
		}
	}
	if upd.Command != nil {
		job.Command = *upd.Command
	}
	if upd.Timeout != nil {
		job.Timeout = *upd.Timeout
	}
	job.UpdatedAt = now

	if err := m.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("cron: save job: %w", err)
	}
	m.logger.Info("cron: job updated", "job", job.ID, "name", job.Name)
	return job, nil
}

// PauseJob makes the job ineligible for tick-driven dispatch. The
// change takes effect before the job's next due check.
func (m *Manager) PauseJob(ctx context.Context, id string) (*Job, error) {
	return m.setStatus(ctx, id, StatusPaused)
}

// ResumeJob reactivates a paused job and recomputes its next fire
// time.
func (m *Manager) ResumeJob(ctx context.Context, id string) (*Job, error) {
	return m.setStatus(ctx, id, StatusActive)
}

func (m *Manager) setStatus(ctx context.Context, id string, status JobStatus) (*Job, error) {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	job, err := m.store.LoadJob(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job.Status = status
	job.UpdatedAt = now
	if status == StatusActive {
		job.NextRun = nil
		if sched, err := expr.Parse(job.Schedule); err == nil {
			if next, err := sched.Next(now); err == nil {
				job.NextRun = &next
			}
		}
	}

	if err := m.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("cron: save job: %w", err)
	}
	m.logger.Info("cron: job status changed", "job", job.ID, "status", status)
	return job, nil
}

// RemoveJob deletes the job. Its execution history is retained as an
// audit trail until PurgeHistory.
func (m *Manager) RemoveJob(ctx context.Context, id string) error {
	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	if err := m.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	m.logger.Info("cron: job removed", "job", id)
	return nil
}

// RunJob dispatches the job immediately, bypassing the due check but
// honoring the no-overlap rule: if an execution is already in flight
// it fails fast with ErrAlreadyRunning instead of queuing.
func (m *Manager) RunJob(ctx context.Context, id string) (*Execution, error) {
	job, err := m.store.LoadJob(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := m.runLock(job.ID)
	if !lock.TryLock() {
		return nil, fmt.Errorf("cron: job %s: %w", id, ErrAlreadyRunning)
	}
	defer lock.Unlock()

	return m.runExecution(ctx, job), nil
}

// History returns up to limit execution records, most recent first.
// It works for removed jobs as long as history has not been purged.
func (m *Manager) History(ctx context.Context, id string, limit int) ([]*Execution, error) {
	return m.store.ListExecutions(ctx, id, limit)
}

// PurgeHistory deletes all execution records for a job id.
func (m *Manager) PurgeHistory(ctx context.Context, id string) error {
	return m.store.PurgeExecutions(ctx, id)
}

// runExecution dispatches, appends the record, and updates job
// bookkeeping. The caller holds the job's running marker.
func (m *Manager) runExecution(ctx context.Context, job *Job) *Execution {
	rec := m.dispatch(ctx, job)

	// The dispatch context may already be cancelled (Stop, caller
	// timeout); the record and bookkeeping writes must land anyway.
	ctx = context.WithoutCancel(ctx)
	if err := m.store.AppendExecution(ctx, rec); err != nil {
		m.logger.Error("cron: append execution failed", "job", job.ID, "execution", rec.ID, "error", err)
	}
	m.recordOutcome(ctx, job.ID, rec)
	return rec
}

// recordOutcome updates run counters and fire times after a dispatch
// and emits the completion event. The job may have been removed while
// it ran; that is not an error.
func (m *Manager) recordOutcome(ctx context.Context, jobID string, rec *Execution) {
	switch rec.Status {
	case ExecSuccess:
		m.publish(Event{Type: EventJobCompleted, JobID: jobID, ExecutionID: rec.ID})
	case ExecCancelled:
		m.publish(Event{Type: EventJobTimedOut, JobID: jobID, ExecutionID: rec.ID, Err: rec.Error})
	default:
		m.publish(Event{Type: EventJobFailed, JobID: jobID, ExecutionID: rec.ID, Err: rec.Error})
	}

	m.adminMu.Lock()
	defer m.adminMu.Unlock()

	job, err := m.store.LoadJob(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		return
	}
	if err != nil {
		m.logger.Error("cron: load job for bookkeeping failed", "job", jobID, "error", err)
		return
	}

	now := time.Now().UTC()
	started := rec.StartedAt
	job.LastRun = &started
	job.UpdatedAt = now
	if rec.Status == ExecSuccess {
		job.RunCount++
	} else {
		job.FailCount++
	}
	job.NextRun = nil
	if sched, err := expr.Parse(job.Schedule); err == nil {
		if next, err := sched.Next(now); err == nil {
			job.NextRun = &next
		}
	}

	if err := m.store.SaveJob(ctx, job); err != nil {
		m.logger.Error("cron: save job bookkeeping failed", "job", jobID, "error", err)
	}
}
