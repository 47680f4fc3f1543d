package cron

import "errors"

var (
	// ErrJobNotFound is returned for operations on an unknown job id.
	ErrJobNotFound = errors.New("cron: job not found")

	// ErrAlreadyRunning is returned by RunJob when an execution for the
	// same job id is still in flight. The engine never queues.
	ErrAlreadyRunning = errors.New("cron: job already running")

	// ErrNoAgentExecutor marks an agent job dispatched without an
	// executor configured. It surfaces inside the execution record, not
	// as an API error.
	ErrNoAgentExecutor = errors.New("cron: no agent executor configured")
)
