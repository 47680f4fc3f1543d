package cron

import (
	"context"
	"time"

	"github.com/cronbox/cronbox/internal/expr"
	"github.com/cronbox/cronbox/internal/telemetry"
)

// Start launches the background tick loop. It is a no-op if the loop
// is already running. The first tick is aligned to the next minute
// boundary.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.loopDone = make(chan struct{})

	go m.loop(ctx, m.loopDone)

	m.logger.Info("cron: scheduler started", "interval", m.tickInterval)
	m.publishLocked(Event{Type: EventStarted})
	return nil
}

// Stop cancels the loop and waits for it and any in-flight dispatches
// to finish, up to ctx's deadline.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.loopDone
	m.cancel = nil
	m.loopDone = nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	drained := make(chan struct{})
	go func() {
		<-done
		m.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		m.logger.Info("cron: scheduler stopped")
		m.publish(Event{Type: EventStopped})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop sleeps to the next boundary of tickInterval and evaluates the
// job table once per wakeup.
func (m *Manager) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		now := time.Now()
		next := now.Truncate(m.tickInterval).Add(m.tickInterval)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case tickAt := <-timer.C:
			m.tick(ctx, tickAt)
		}
	}
}

// tick evaluates one pass: snapshot the job table, check which active
// jobs are due at the minute-truncated instant, and spawn a dispatch
// for each that is not already running. Store failures skip the
// affected job (or the whole tick) without stopping the loop.
func (m *Manager) tick(ctx context.Context, now time.Time) {
	now = now.Truncate(time.Minute)
	telemetry.RecordSchedulerTick(ctx)

	// Sub-minute tick intervals re-check the table sooner, but an
	// already-evaluated minute must not fire twice. A failed snapshot
	// leaves the minute eligible for the next wakeup.
	if now.Equal(m.lastTick) {
		return
	}

	jobs, err := m.store.ListJobs(ctx)
	if err != nil {
		m.logger.Error("cron: list jobs failed, skipping tick", "error", err)
		return
	}
	m.lastTick = now

	for _, job := range jobs {
		if job.Status != StatusActive {
			continue
		}

		sched, err := expr.Parse(job.Schedule)
		if err != nil {
			// Stored text predates validation or was corrupted on disk.
			m.logger.Error("cron: stored schedule invalid, skipping job", "job", job.ID, "error", err)
			continue
		}
		if !sched.Matches(now) {
			continue
		}

		lock := m.runLock(job.ID)
		// TryLock is atomic; if the previous execution is still in
		// flight this tick is skipped for the job, never queued.
		if !lock.TryLock() {
			m.logger.Warn("cron: job still running, skipping tick", "job", job.ID)
			continue
		}

		m.wg.Add(1)
		go func(job *Job) {
			defer m.wg.Done()
			defer lock.Unlock()
			m.runExecution(ctx, job)
		}(job)
	}
}
