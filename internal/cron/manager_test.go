package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(Config{
		Store:  NewMemoryStore(0),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestManager_AddJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	job, err := m.AddJob(ctx, "nightly", "0 2 * * *", "echo run")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if job.ID == "" {
		t.Error("id not assigned")
	}
	if job.Type != JobShell || job.Status != StatusActive {
		t.Errorf("defaults wrong: %+v", job)
	}
	if job.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", job.Timeout, DefaultTimeout)
	}
	if job.NextRun == nil {
		t.Error("NextRun not computed")
	} else if job.NextRun.Hour() != 2 || job.NextRun.Minute() != 0 {
		t.Errorf("NextRun = %v, want 02:00", job.NextRun)
	}

	got, err := m.GetJob(ctx, job.ID)
	if err != nil || got.Name != "nightly" {
		t.Errorf("round-trip via store: %+v, %v", got, err)
	}
}

func TestManager_AddJob_InvalidSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.AddJob(ctx, "bad", "99 * * * *", "echo"); err == nil {
		t.Fatal("want parse error for out-of-range minute")
	}
	if _, err := m.AddJob(ctx, "bad", "* * * *", "echo"); err == nil {
		t.Fatal("want parse error for four fields")
	}

	jobs, _ := m.ListJobs(ctx)
	if len(jobs) != 0 {
		t.Errorf("rejected jobs must not be persisted, got %d", len(jobs))
	}
}

func TestManager_DuplicateNamesAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	a, err := m.AddJob(ctx, "same", "* * * * *", "echo a")
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	b, err := m.AddJob(ctx, "same", "* * * * *", "echo b")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if a.ID == b.ID {
		t.Error("ids must differ")
	}
	jobs, _ := m.ListJobs(ctx)
	if len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}
}

func TestManager_UpdateJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	job, _ := m.AddJob(ctx, "upd", "0 2 * * *", "echo old")

	newSched := "0 5 * * *"
	newCmd := "echo new"
	newTimeout := 30 * time.Second
	updated, err := m.UpdateJob(ctx, job.ID, JobUpdate{
		Schedule: &newSched,
		Command:  &newCmd,
		Timeout:  &newTimeout,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Schedule != newSched || updated.Command != newCmd || updated.Timeout != newTimeout {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.NextRun == nil || updated.NextRun.Hour() != 5 {
		t.Errorf("NextRun not recomputed: %v", updated.NextRun)
	}

	// A bad schedule must leave the job untouched.
	bad := "not a schedule"
	if _, err := m.UpdateJob(ctx, job.ID, JobUpdate{Schedule: &bad}); err == nil {
		t.Fatal("want parse error")
	}
	got, _ := m.GetJob(ctx, job.ID)
	if got.Schedule != newSched {
		t.Errorf("failed update mutated the job: %q", got.Schedule)
	}
}

func TestManager_PauseResume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	job, _ := m.AddJob(ctx, "toggle", "* * * * *", "echo")

	paused, err := m.PauseJob(ctx, job.ID)
	if err != nil || paused.Status != StatusPaused {
		t.Fatalf("pause: %+v, %v", paused, err)
	}
	// Pausing twice is harmless.
	if _, err := m.PauseJob(ctx, job.ID); err != nil {
		t.Fatalf("second pause: %v", err)
	}

	resumed, err := m.ResumeJob(ctx, job.ID)
	if err != nil || resumed.Status != StatusActive {
		t.Fatalf("resume: %+v, %v", resumed, err)
	}
	if resumed.NextRun == nil {
		t.Error("resume must recompute NextRun")
	}
}

func TestManager_UnknownJobID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	if _, err := m.GetJob(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("get: %v", err)
	}
	if _, err := m.PauseJob(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("pause: %v", err)
	}
	if _, err := m.RunJob(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("run: %v", err)
	}
	if err := m.RemoveJob(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("remove: %v", err)
	}
}

func TestManager_RunJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	job, _ := m.AddJob(ctx, "manual", "0 0 1 1 *", "echo manual-run")

	rec, err := m.RunJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != ExecSuccess {
		t.Fatalf("status = %v (%s)", rec.Status, rec.Error)
	}
	if !strings.Contains(rec.Stdout, "manual-run") {
		t.Errorf("stdout = %q", rec.Stdout)
	}

	// Bookkeeping and history follow the run.
	got, _ := m.GetJob(ctx, job.ID)
	if got.RunCount != 1 || got.LastRun == nil {
		t.Errorf("bookkeeping not updated: %+v", got)
	}
	hist, err := m.History(ctx, job.ID, 0)
	if err != nil || len(hist) != 1 || hist[0].ID != rec.ID {
		t.Errorf("history: %v, %v", hist, err)
	}
}

func TestManager_RunJob_FailureCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	job, _ := m.AddJob(ctx, "failing", "0 0 1 1 *", "exit 3")

	rec, err := m.RunJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != ExecFailed {
		t.Fatalf("status = %v, want failed", rec.Status)
	}
	if rec.ExitCode == nil || *rec.ExitCode != 3 {
		t.Errorf("exit code = %v, want 3", rec.ExitCode)
	}

	got, _ := m.GetJob(ctx, job.ID)
	if got.FailCount != 1 || got.RunCount != 0 {
		t.Errorf("counters: run=%d fail=%d", got.RunCount, got.FailCount)
	}
}

// TestManager_RunJob_NoOverlap holds an execution open and verifies a
// second concurrent request fails fast instead of queuing.
func TestManager_RunJob_NoOverlap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	m.SetAgentExecutor(AgentExecutorFunc(func(ctx context.Context, cfg AgentJobConfig, prompt, workingDir string) (string, error) {
		entered <- struct{}{}
		<-release
		return "done", nil
	}))

	job, _ := m.AddAgentJob(ctx, "slow", "0 0 1 1 *", "hold", AgentJobConfig{Model: "m"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := m.RunJob(ctx, job.ID); err != nil {
			t.Errorf("first run: %v", err)
		}
	}()

	<-entered
	if _, err := m.RunJob(ctx, job.ID); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("overlap err = %v, want ErrAlreadyRunning", err)
	}
	close(release)
	wg.Wait()

	// Once the first run finished the job is runnable again.
	if _, err := m.RunJob(ctx, job.ID); err != nil {
		t.Errorf("run after release: %v", err)
	}
}

// appendCtxStore captures the context state AppendExecution runs under.
type appendCtxStore struct {
	Store
	ctxErr chan error
}

func (s *appendCtxStore) AppendExecution(ctx context.Context, rec *Execution) error {
	s.ctxErr <- ctx.Err()
	return s.Store.AppendExecution(ctx, rec)
}

// TestManager_RunJob_RecordSurvivesCancellation cancels the dispatch
// mid-flight and verifies the execution record and job bookkeeping
// still land in the store.
func TestManager_RunJob_RecordSurvivesCancellation(t *testing.T) {
	t.Parallel()

	store := &appendCtxStore{Store: NewMemoryStore(0), ctxErr: make(chan error, 1)}
	m := NewManager(Config{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	entered := make(chan struct{}, 1)
	m.SetAgentExecutor(AgentExecutorFunc(func(ctx context.Context, cfg AgentJobConfig, prompt, workingDir string) (string, error) {
		entered <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	}))

	job, err := m.AddAgentJob(context.Background(), "doomed", "0 0 1 1 *", "hold", AgentJobConfig{Model: "m"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan *Execution, 1)
	go func() {
		rec, err := m.RunJob(runCtx, job.ID)
		if err != nil {
			t.Errorf("run: %v", err)
		}
		done <- rec
	}()

	<-entered
	cancel()
	rec := <-done
	if rec == nil {
		t.Fatal("run returned no record")
	}

	if err := <-store.ctxErr; err != nil {
		t.Errorf("append ran on a cancelled context: %v", err)
	}
	hist, err := m.History(context.Background(), job.ID, 0)
	if err != nil || len(hist) != 1 || hist[0].ID != rec.ID {
		t.Fatalf("history: %v, %v", hist, err)
	}
	got, _ := m.GetJob(context.Background(), job.ID)
	if got.FailCount != 1 || got.LastRun == nil {
		t.Errorf("bookkeeping not persisted: %+v", got)
	}
}

func TestManager_AgentJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	cfg := AgentJobConfig{Model: "gpt-4o-mini", APIKey: "k"}
	job, err := m.AddAgentJob(ctx, "reporter", "0 9 * * 1", "Write the weekly report", cfg)
	if err != nil {
		t.Fatalf("add agent job: %v", err)
	}
	if job.Type != JobAgent || job.AgentConfig == nil || job.AgentConfig.Model != "gpt-4o-mini" {
		t.Fatalf("agent job wrong: %+v", job)
	}

	// Without an executor the run is recorded as a failure, not an
	// error from RunJob.
	rec, err := m.RunJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Status != ExecFailed || !strings.Contains(rec.Error, ErrNoAgentExecutor.Error()) {
		t.Errorf("rec = %+v", rec)
	}

	m.SetAgentExecutor(AgentExecutorFunc(func(ctx context.Context, cfg AgentJobConfig, prompt, workingDir string) (string, error) {
		if prompt != "Write the weekly report" {
			t.Errorf("prompt = %q", prompt)
		}
		return "report text", nil
	}))

	rec, err = m.RunJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("run with executor: %v", err)
	}
	if rec.Status != ExecSuccess || rec.Stdout != "report text" {
		t.Errorf("rec = %+v", rec)
	}
	if rec.ExitCode != nil {
		t.Errorf("agent runs carry no exit code, got %v", *rec.ExitCode)
	}
}

func TestManager_RemoveKeepsHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	job, _ := m.AddJob(ctx, "audited", "0 0 1 1 *", "echo done")
	if _, err := m.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := m.RemoveJob(ctx, job.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	hist, err := m.History(ctx, job.ID, 0)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history after removal: %v, %v", hist, err)
	}

	if err := m.PurgeHistory(ctx, job.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	hist, _ = m.History(ctx, job.ID, 0)
	if len(hist) != 0 {
		t.Errorf("history after purge: %v", hist)
	}
}

func TestManager_Events(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTestManager(t)

	events := m.Subscribe()
	job, _ := m.AddJob(ctx, "observed", "0 0 1 1 *", "echo hi")
	if _, err := m.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got []EventType
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
			if ev.JobID != job.ID {
				t.Errorf("event job id = %q", ev.JobID)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	if got[0] != EventJobStarted || got[1] != EventJobCompleted {
		t.Errorf("events = %v", got)
	}
}
