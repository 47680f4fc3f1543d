package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpanConstantsFollowConvention(t *testing.T) {
	t.Parallel()

	for _, name := range []string{SpanExecuteJob, SpanSchedulerTick} {
		if !strings.HasPrefix(name, "cronbox.") {
			t.Errorf("span %q should start with cronbox.", name)
		}
	}
}

func TestAttributeKeysFollowConvention(t *testing.T) {
	t.Parallel()

	keys := []string{AttrJobID, AttrJobName, AttrJobStatus, AttrJobDurationMS}
	seen := make(map[string]bool)
	for _, key := range keys {
		if !strings.HasPrefix(key, "cronbox.cron.") {
			t.Errorf("attribute %q should start with cronbox.cron.", key)
		}
		if seen[key] {
			t.Errorf("attribute %q is duplicated", key)
		}
		seen[key] = true
	}
}

func TestRecord_NoPanicWithoutInit(t *testing.T) {
	// Not parallel: other tests may call Init; either state must hold.
	ctx := context.Background()
	RecordJobExecution(ctx, "test-job", "success", 1.5)
	RecordJobExecution(ctx, "test-job", "failed", 0)
	RecordJobExecution(ctx, "", "", 0)
	RecordSchedulerTick(ctx)
}

func TestSpanLifecycle_NoopProvider(t *testing.T) {
	t.Parallel()

	// Without a configured tracer provider spans are no-ops; the
	// helpers must still behave.
	ctx, span := StartExecuteSpan(context.Background(), "id-1", "nightly")
	if ctx == nil {
		t.Fatal("context should never be nil")
	}
	EndExecuteSpan(span, "success", 250*time.Millisecond)
}

func TestInit_Idempotent(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	// After Init the recorders must accept values.
	RecordJobExecution(context.Background(), "job", "success", 0.1)
	RecordSchedulerTick(context.Background())
}
