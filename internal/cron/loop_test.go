package cron_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cronbox/cronbox/internal/cron"
	"github.com/cronbox/cronbox/internal/cron/crontest"
)

// TestLoop_SurvivesStoreOutage runs the real tick loop against a store
// that fails while Broken is set and verifies the loop keeps ticking
// and dispatches once the store recovers.
func TestLoop_SurvivesStoreOutage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	flaky := &crontest.FlakyStore{Store: cron.NewMemoryStore(0)}
	m := cron.NewManager(cron.Config{
		Store:        flaky,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		TickInterval: 20 * time.Millisecond,
	})

	executed := make(chan struct{}, 64)
	m.SetAgentExecutor(&crontest.MockExecutor{
		ExecuteFunc: func(ctx context.Context, cfg cron.AgentJobConfig, prompt, workingDir string) (string, error) {
			select {
			case executed <- struct{}{}:
			default:
			}
			return "ok", nil
		},
	})

	job, err := m.AddAgentJob(ctx, "steady", "* * * * *", "p", cron.AgentJobConfig{Model: "m"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	flaky.Broken.Store(true)
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Stop(stopCtx)
	})

	// Let several failing ticks pass.
	deadline := time.Now().Add(2 * time.Second)
	for flaky.ListCalls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if flaky.ListCalls.Load() < 3 {
		t.Fatal("loop stopped ticking during the outage")
	}
	if len(executed) != 0 {
		t.Fatal("dispatched during store outage")
	}

	flaky.Broken.Store(false)
	select {
	case <-executed:
	case <-time.After(3 * time.Second):
		t.Fatal("no dispatch after store recovery")
	}

	hist, err := m.History(ctx, job.ID, 1)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history: %v, %v", hist, err)
	}
}
