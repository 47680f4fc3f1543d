package cron

import "context"

// Store is the durable job table and execution history contract.
// Every operation is atomic with respect to a single job id.
// Implementations must return records the caller may retain and
// mutate freely (deep copies, not aliases).
//
// History is append-only and time-ordered per job. Deleting a job does
// not delete its history; PurgeExecutions is the explicit purge.
// Implementations may truncate history from the oldest end according
// to a retention limit.
type Store interface {
	// SaveJob creates or replaces the record with job.ID.
	SaveJob(ctx context.Context, job *Job) error

	// LoadJob returns the record or ErrJobNotFound.
	LoadJob(ctx context.Context, id string) (*Job, error)

	// ListJobs returns all jobs in an order that is stable within a
	// session.
	ListJobs(ctx context.Context) ([]*Job, error)

	// DeleteJob removes the job record, keeping its history. Returns
	// ErrJobNotFound for unknown ids.
	DeleteJob(ctx context.Context, id string) error

	// AppendExecution appends a completed execution record.
	AppendExecution(ctx context.Context, exec *Execution) error

	// ListExecutions returns up to limit records for the job, most
	// recent first. limit <= 0 means no limit. Unknown job ids yield an
	// empty slice, not an error: history may outlive its job.
	ListExecutions(ctx context.Context, jobID string, limit int) ([]*Execution, error)

	// PurgeExecutions deletes all history for the job id.
	PurgeExecutions(ctx context.Context, jobID string) error

	// Close releases any underlying resources.
	Close() error
}
