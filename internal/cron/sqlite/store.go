package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cronbox/cronbox/internal/cron"
)

// SaveJob inserts or replaces the job record. Insertion order is kept
// across replacements so ListJobs stays stable.
func (s *Store) SaveJob(ctx context.Context, job *cron.Job) error {
	var agentJSON sql.NullString
	if job.AgentConfig != nil {
		raw, err := json.Marshal(job.AgentConfig)
		if err != nil {
			return fmt.Errorf("sqlite: marshal agent config: %w", err)
		}
		agentJSON = sql.NullString{String: string(raw), Valid: true}
	}

	env := job.Env
	if env == nil {
		env = map[string]string{}
	}
	envJSON, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("sqlite: marshal env: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, schedule, type, command, agent_config, env,
			working_dir, timeout_ns, status, created_at, updated_at,
			last_run, next_run, run_count, fail_count, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM jobs))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			type = excluded.type,
			command = excluded.command,
			agent_config = excluded.agent_config,
			env = excluded.env,
			working_dir = excluded.working_dir,
			timeout_ns = excluded.timeout_ns,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			run_count = excluded.run_count,
			fail_count = excluded.fail_count`,
		job.ID, job.Name, job.Schedule, string(job.Type), job.Command,
		agentJSON, string(envJSON), job.WorkingDir, int64(job.Timeout),
		string(job.Status), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
		formatTimePtr(job.LastRun), formatTimePtr(job.NextRun),
		job.RunCount, job.FailCount,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save job: %w", err)
	}
	return nil
}

const jobColumns = `id, name, schedule, type, command, agent_config, env,
	working_dir, timeout_ns, status, created_at, updated_at,
	last_run, next_run, run_count, fail_count`

// LoadJob returns the job by id, or cron.ErrJobNotFound.
func (s *Store) LoadJob(ctx context.Context, id string) (*cron.Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cron.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load job: %w", err)
	}
	return job, nil
}

// ListJobs returns all jobs in insertion order.
func (s *Store) ListJobs(ctx context.Context) ([]*cron.Job, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*cron.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list jobs rows: %w", err)
	}
	return jobs, nil
}

// DeleteJob removes the job. Execution history is kept.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete job: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return cron.ErrJobNotFound
	}
	return nil
}

// AppendExecution stores an execution record and trims the job's
// history to the retention limit, oldest first.
func (s *Store) AppendExecution(ctx context.Context, rec *cron.Execution) error {
	var exitCode sql.NullInt64
	if rec.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*rec.ExitCode), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, job_id, started_at, finished_at,
			stdout, stderr, exit_code, status, error, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM executions))`,
		rec.ID, rec.JobID, formatTime(rec.StartedAt), formatTimePtr(rec.FinishedAt),
		rec.Stdout, rec.Stderr, exitCode, string(rec.Status), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append execution: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM executions WHERE job_id = ? AND id NOT IN (
			SELECT id FROM executions WHERE job_id = ? ORDER BY seq DESC LIMIT ?
		)`,
		rec.JobID, rec.JobID, s.historyLimit,
	)
	if err != nil {
		return fmt.Errorf("sqlite: trim history: %w", err)
	}
	return nil
}

// ListExecutions returns up to limit records for the job, most recent
// first. limit <= 0 returns all retained records.
func (s *Store) ListExecutions(ctx context.Context, jobID string, limit int) ([]*cron.Execution, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, started_at, finished_at, stdout, stderr,
			exit_code, status, error
		FROM executions WHERE job_id = ? ORDER BY seq DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*cron.Execution
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan execution: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list executions rows: %w", err)
	}
	return recs, nil
}

// PurgeExecutions deletes all execution records for the job id.
func (s *Store) PurgeExecutions(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("sqlite: purge executions: %w", err)
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*cron.Job, error) {
	var (
		job       cron.Job
		typ       string
		status    string
		agentJSON sql.NullString
		envJSON   string
		timeoutNS int64
		createdAt string
		updatedAt string
		lastRun   sql.NullString
		nextRun   sql.NullString
	)
	if err := row.Scan(&job.ID, &job.Name, &job.Schedule, &typ, &job.Command,
		&agentJSON, &envJSON, &job.WorkingDir, &timeoutNS, &status,
		&createdAt, &updatedAt, &lastRun, &nextRun,
		&job.RunCount, &job.FailCount); err != nil {
		return nil, err
	}

	job.Type = cron.JobType(typ)
	job.Status = cron.JobStatus(status)
	job.Timeout = time.Duration(timeoutNS)

	if agentJSON.Valid {
		cfg := &cron.AgentJobConfig{}
		if err := json.Unmarshal([]byte(agentJSON.String), cfg); err != nil {
			return nil, fmt.Errorf("unmarshal agent config: %w", err)
		}
		job.AgentConfig = cfg
	}
	if envJSON != "" && envJSON != "{}" {
		if err := json.Unmarshal([]byte(envJSON), &job.Env); err != nil {
			return nil, fmt.Errorf("unmarshal env: %w", err)
		}
	}

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if job.LastRun, err = parseTimePtr(lastRun); err != nil {
		return nil, err
	}
	if job.NextRun, err = parseTimePtr(nextRun); err != nil {
		return nil, err
	}
	return &job, nil
}

func scanExecution(row scanner) (*cron.Execution, error) {
	var (
		rec        cron.Execution
		status     string
		startedAt  string
		finishedAt sql.NullString
		exitCode   sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.JobID, &startedAt, &finishedAt,
		&rec.Stdout, &rec.Stderr, &exitCode, &status, &rec.Error); err != nil {
		return nil, err
	}

	rec.Status = cron.ExecStatus(status)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}

	var err error
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
