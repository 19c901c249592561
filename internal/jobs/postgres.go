package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/clock/system"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const uniqueViolation = "23505"

// PostgresConfig controls the Postgres connection pool used for job rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore persists jobs in Postgres. It assumes a table schema like:
//
//	CREATE TABLE admissions_jobs (
//	  id TEXT PRIMARY KEY,
//	  status TEXT NOT NULL,
//	  submitted_at TIMESTAMPTZ NOT NULL,
//	  started_at TIMESTAMPTZ,
//	  finished_at TIMESTAMPTZ,
//	  error_text TEXT NOT NULL DEFAULT '',
//	  parameters JSONB,
//	  counts JSONB,
//	  results JSONB
//	);
type PostgresStore struct {
	pool  pgxPool
	table string
	clock admissions.Clock
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed job store using the provided
// config.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jobs.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStoreWithPool(pool, cfg.Table, nil)
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing). A nil clock uses the system clock.
func NewPostgresStoreWithPool(pool pgxPool, table string, clk admissions.Clock) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "admissions_jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if clk == nil {
		clk = system.New()
	}
	return &PostgresStore{pool: pool, table: table, clock: clk}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Create inserts a new job row.
func (s *PostgresStore) Create(ctx context.Context, job Job) error {
	paramsJSON, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal job parameters: %w", err)
	}
	countsJSON, err := json.Marshal(job.Counts)
	if err != nil {
		return fmt.Errorf("marshal job counts: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, status, submitted_at, error_text, parameters, counts)
VALUES ($1, $2, $3, $4, $5, $6)`, s.table)

	if _, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.SubmittedAt, job.Error, paramsJSON, countsJSON,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// Get fetches a job row by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	query := fmt.Sprintf(`
SELECT status, submitted_at, started_at, finished_at, error_text, parameters, counts
FROM %s WHERE id = $1`, s.table)

	var (
		job        = Job{ID: id}
		status     string
		paramsJSON []byte
		countsJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&status, &job.SubmittedAt, &job.StartedAt, &job.FinishedAt, &job.Error,
		&paramsJSON, &countsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	job.Status = Status(status)
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &job.Parameters); err != nil {
			return Job{}, fmt.Errorf("parse job %s parameters: %w", id, err)
		}
	}
	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &job.Counts); err != nil {
			return Job{}, fmt.Errorf("parse job %s counts: %w", id, err)
		}
	}
	return job, nil
}

// UpdateStatus moves a job through its lifecycle in a single statement so
// concurrent updates cannot thaw a terminal job.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, errText string, counts admissions.RunSummary) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal job counts: %w", err)
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	status = $2,
	error_text = $3,
	counts = $4,
	started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $5) ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('done', 'failed') THEN $5 ELSE finished_at END
WHERE id = $1 AND status NOT IN ('done', 'failed')`, s.table)

	tag, err := s.pool.Exec(ctx, query, id, string(status), errText, countsJSON, s.clock.Now())
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("job %s: %w", id, ErrFinished)
	}
	return nil
}

// SaveResults stores the crawl output in the results column.
func (s *PostgresStore) SaveResults(ctx context.Context, id string, records []admissions.AdmissionsRecord) error {
	resultsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal job results: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET results = $2 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, resultsJSON)
	if err != nil {
		return fmt.Errorf("save job %s results: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// Results loads the stored crawl output for a job.
func (s *PostgresStore) Results(ctx context.Context, id string) ([]admissions.AdmissionsRecord, error) {
	query := fmt.Sprintf(`SELECT results FROM %s WHERE id = $1`, s.table)

	var resultsJSON []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&resultsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s results: %w", id, err)
	}
	if len(resultsJSON) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, ErrNoResults)
	}

	var records []admissions.AdmissionsRecord
	if err := json.Unmarshal(resultsJSON, &records); err != nil {
		return nil, fmt.Errorf("parse job %s results: %w", id, err)
	}
	return records, nil
}
