// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cronbox/cronbox/internal/cron"
)

// MockExecutor is a configurable test double for cron.AgentExecutor.
type MockExecutor struct {
	// Response is returned when ExecuteFunc is nil and Err is nil.
	Response string
	// Err, when set, is returned instead of a response.
	Err error
	// ExecuteFunc overrides the canned behavior entirely.
	ExecuteFunc func(ctx context.Context, cfg cron.AgentJobConfig, prompt, workingDir string) (string, error)

	mu         sync.Mutex
	calls      int
	lastPrompt string
	lastConfig cron.AgentJobConfig
}

// Compile-time interface check.
var _ cron.AgentExecutor = (*MockExecutor)(nil)

// Execute implements cron.AgentExecutor and records the call.
func (m *MockExecutor) Execute(ctx context.Context, cfg cron.AgentJobConfig, prompt, workingDir string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	m.lastConfig = cfg
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, cfg, prompt, workingDir)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// CallCount returns the number of Execute calls.
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the prompt of the most recent call.
func (m *MockExecutor) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// LastConfig returns the config of the most recent call.
func (m *MockExecutor) LastConfig() cron.AgentJobConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConfig
}

// FlakyStore wraps a Store and fails ListJobs while Broken is set.
// Used to verify that the tick loop survives store errors.
type FlakyStore struct {
	cron.Store
	Broken atomic.Bool

	ListCalls atomic.Int32
}

// ListJobs implements cron.Store.
func (s *FlakyStore) ListJobs(ctx context.Context) ([]*cron.Job, error) {
	s.ListCalls.Add(1)
	if s.Broken.Load() {
		return nil, errTransient
	}
	return s.Store.ListJobs(ctx)
}

type transientError struct{}

func (transientError) Error() string { return "crontest: transient store failure" }

var errTransient = transientError{}
