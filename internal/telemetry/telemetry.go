// Package telemetry provides structured spans, attribute constants,
// and OpenTelemetry metrics for scheduler and job-execution
// observability. Recording functions are no-ops until Init is called,
// so library users who do not wire telemetry pay nothing.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	// SpanExecuteJob covers a single job execution.
	SpanExecuteJob = "cronbox.cron.execute_job"
	// SpanSchedulerTick covers one evaluation pass of the loop.
	SpanSchedulerTick = "cronbox.cron.scheduler_tick"
)

// Attribute keys.
const (
	AttrJobID         = "cronbox.cron.job_id"
	AttrJobName       = "cronbox.cron.job_name"
	AttrJobStatus     = "cronbox.cron.job_status"
	AttrJobDurationMS = "cronbox.cron.job_duration_ms"
)

// scopeName is the instrumentation scope for tracer and meter.
const scopeName = "github.com/cronbox/cronbox"

// recorder holds the metric instruments.
type recorder struct {
	jobsExecuted   metric.Int64Counter
	jobDuration    metric.Float64Histogram
	schedulerTicks metric.Int64Counter
}

var (
	initOnce    sync.Once
	instruments atomic.Pointer[recorder]
)

// Init creates the metric instruments using the global meter provider.
// Safe to call multiple times; only the first call takes effect. Call
// it after installing a meter provider.
func Init() error {
	var initErr error
	initOnce.Do(func() {
		meter := otel.Meter(scopeName)

		jobs, err := meter.Int64Counter("cronbox_jobs_executed_total",
			metric.WithDescription("Total cron job executions"))
		if err != nil {
			initErr = fmt.Errorf("telemetry: create jobs counter: %w", err)
			return
		}
		dur, err := meter.Float64Histogram("cronbox_job_duration_seconds",
			metric.WithDescription("Cron job execution duration in seconds"),
			metric.WithUnit("s"))
		if err != nil {
			initErr = fmt.Errorf("telemetry: create duration histogram: %w", err)
			return
		}
		ticks, err := meter.Int64Counter("cronbox_scheduler_ticks_total",
			metric.WithDescription("Total scheduler tick cycles"))
		if err != nil {
			initErr = fmt.Errorf("telemetry: create ticks counter: %w", err)
			return
		}

		instruments.Store(&recorder{jobsExecuted: jobs, jobDuration: dur, schedulerTicks: ticks})
	})
	return initErr
}

// StartExecuteSpan opens the execute_job span with the job identity
// attached.
func StartExecuteSpan(ctx context.Context, jobID, jobName string) (context.Context, trace.Span) {
	return otel.Tracer(scopeName).Start(ctx, SpanExecuteJob, trace.WithAttributes(
		attribute.String(AttrJobID, jobID),
		attribute.String(AttrJobName, jobName),
	))
}

// EndExecuteSpan records the outcome attributes and closes the span.
func EndExecuteSpan(span trace.Span, status string, dur time.Duration) {
	span.SetAttributes(
		attribute.String(AttrJobStatus, status),
		attribute.Int64(AttrJobDurationMS, dur.Milliseconds()),
	)
	span.End()
}

// RecordJobExecution records one execution with name, status, and
// duration. No-op before Init.
func RecordJobExecution(ctx context.Context, jobName, status string, seconds float64) {
	r := instruments.Load()
	if r == nil {
		return
	}
	r.jobsExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", jobName),
		attribute.String("status", status),
	))
	r.jobDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("job_name", jobName),
	))
}

// RecordSchedulerTick records one scheduler tick. No-op before Init.
func RecordSchedulerTick(ctx context.Context) {
	r := instruments.Load()
	if r == nil {
		return
	}
	r.schedulerTicks.Add(ctx, 1)
}
