package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// fileDocument is the on-disk layout: one JSON document holding the
// job table and the per-job history, keyed by job id.
type fileDocument struct {
	Version int                     `json:"version"`
	Jobs    []*Job                  `json:"jobs"`
	History map[string][]*Execution `json:"history"`
}

const fileDocumentVersion = 1

// FileStore is a durable Store backed by a single JSON document. Every
// mutation rewrites the document via write-to-temp-then-rename, so a
// crash mid-write leaves the previous valid state on disk.
type FileStore struct {
	mu    sync.Mutex
	path  string
	doc   fileDocument
	limit int
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// OpenFileStore loads (or initialises) the document at path.
// historyLimit <= 0 selects DefaultHistoryLimit.
func OpenFileStore(path string, historyLimit int) (*FileStore, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("cron: create store directory %s: %w", dir, err)
		}
	}

	s := &FileStore{
		path:  path,
		doc:   fileDocument{Version: fileDocumentVersion, History: make(map[string][]*Execution)},
		limit: historyLimit,
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Fresh store; first mutation creates the file.
	case err != nil:
		return nil, fmt.Errorf("cron: read store %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &s.doc); err != nil {
			return nil, fmt.Errorf("cron: parse store %s: %w", path, err)
		}
		if s.doc.History == nil {
			s.doc.History = make(map[string][]*Execution)
		}
	}
	return s, nil
}

// flushLocked rewrites the document transactionally. Callers hold s.mu.
func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cron: encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("cron: write store temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("cron: replace store: %w", err)
	}
	return nil
}

func (s *FileStore) findLocked(id string) int {
	for i, job := range s.doc.Jobs {
		if job.ID == id {
			return i
		}
	}
	return -1
}

// SaveJob implements Store.
func (s *FileStore) SaveJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.findLocked(job.ID); i >= 0 {
		s.doc.Jobs[i] = job.Clone()
	} else {
		s.doc.Jobs = append(s.doc.Jobs, job.Clone())
	}
	return s.flushLocked()
}

// LoadJob implements Store.
func (s *FileStore) LoadJob(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(id)
	if i < 0 {
		return nil, ErrJobNotFound
	}
	return s.doc.Jobs[i].Clone(), nil
}

// ListJobs implements Store. Order is document order, which is
// creation order.
func (s *FileStore) ListJobs(_ context.Context) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*Job, 0, len(s.doc.Jobs))
	for _, job := range s.doc.Jobs {
		jobs = append(jobs, job.Clone())
	}
	return jobs, nil
}

// DeleteJob implements Store. History stays in the document as an
// audit trail until purged.
func (s *FileStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(id)
	if i < 0 {
		return ErrJobNotFound
	}
	s.doc.Jobs = append(s.doc.Jobs[:i], s.doc.Jobs[i+1:]...)
	return s.flushLocked()
}

// AppendExecution implements Store, truncating from the oldest end
// beyond the retention limit.
func (s *FileStore) AppendExecution(_ context.Context, exec *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := append(s.doc.History[exec.JobID], exec.Clone())
	if len(recs) > s.limit {
		recs = recs[len(recs)-s.limit:]
	}
	s.doc.History[exec.JobID] = recs
	return s.flushLocked()
}

// ListExecutions implements Store, most recent first.
func (s *FileStore) ListExecutions(_ context.Context, jobID string, limit int) ([]*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.doc.History[jobID]
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
func (s *FileStore) PurgeExecutions(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.History[jobID]; !ok {
		return nil
	}
	delete(s.doc.History, jobID)
	return s.flushLocked()
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
