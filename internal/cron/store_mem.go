package cron

import (
	"context"
	"sort"
	"sync"
)

// DefaultHistoryLimit caps per-job history when a store is created
// with a non-positive limit.
const DefaultHistoryLimit = 100

// MemoryStore is an ephemeral Store for tests and embedded use with no
// durability guarantee. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	history map[string][]*Execution
	seq     map[string]int // insertion order for stable listing
	nextSeq int
	limit   int
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store. historyLimit <= 0
// selects DefaultHistoryLimit.
func NewMemoryStore(historyLimit int) *MemoryStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &MemoryStore{
		jobs:    make(map[string]*Job),
		history: make(map[string][]*Execution),
		seq:     make(map[string]int),
		limit:   historyLimit,
	}
}

// SaveJob implements Store.
func (s *MemoryStore) SaveJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seq[job.ID]; !ok {
		s.seq[job.ID] = s.nextSeq
		s.nextSeq++
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// LoadJob implements Store.
func (s *MemoryStore) LoadJob(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListJobs implements Store. Order is creation order.
func (s *MemoryStore) ListJobs(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, k int) bool {
		return s.seq[jobs[i].ID] < s.seq[jobs[k].ID]
	})
	return jobs, nil
}

// DeleteJob implements Store. History is kept until purged.
func (s *MemoryStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

// AppendExecution implements Store, truncating from the oldest end
// beyond the retention limit.
func (s *MemoryStore) AppendExecution(_ context.Context, exec *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := append(s.history[exec.JobID], exec.Clone())
	if len(recs) > s.limit {
		recs = recs[len(recs)-s.limit:]
	}
	s.history[exec.JobID] = recs
	return nil
}

// ListExecutions implements Store, most recent first.
func (s *MemoryStore) ListExecutions(_ context.Context, jobID string, limit int) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.history[jobID]
	n := len(recs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Execution, 0, n)
	for i := len(recs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, recs[i].Clone())
	}
	return out, nil
}

// PurgeExecutions implements Store.
func (s *MemoryStore) PurgeExecutions(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.history, jobID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
