package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (or creates) the run database at
// <projectRoot>/.tickframe/runs.db.
func NewSQLiteRunStore(projectRoot string) (*SQLiteRunStore, error) {
	dir, err := EnsureLocalDir(projectRoot)
	if err != nil {
		return nil, err
	}
	return OpenSQLiteRunStore(filepath.Join(dir, DBFile))
}

// OpenSQLiteRunStore opens the run database at dbPath, creating parent
// directories and the schema as needed.
func OpenSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// CreateRun inserts a new run row.
func (s *SQLiteRunStore) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, rule, seed, max_ticks, status, results_dir, config, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Rule, int64(run.Seed), run.MaxTicks, string(run.Status),
		nullString(run.ResultsDir), nullString(run.Config), run.StartedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the final status and summary of a run.
func (s *SQLiteRunStore) FinishRun(ctx context.Context, id string, status Status, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), nullString(summary), time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// timeFormat keeps a fixed width so TEXT ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, name, rule, seed, max_ticks, status, results_dir, config, summary, started_at, finished_at`

// GetRun retrieves a run by ID.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs ordered by start time, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                         Run
		seed                        int64
		status, startedAt           string
		resultsDir, config, summary sql.NullString
		finishedAt                  sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Name, &run.Rule, &seed, &run.MaxTicks, &status,
		&resultsDir, &config, &summary, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Seed = uint64(seed)
	run.Status = Status(status)
	run.ResultsDir = resultsDir.String
	run.Config = config.String
	run.Summary = summary.String

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = t
	if finishedAt.Valid {
		ft, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &ft
	}
	return &run, nil
}

// AppendMetrics writes one row per named value at tick in a single transaction.
// Re-recording a (metric, tick) pair replaces the earlier value.
func (s *SQLiteRunStore) AppendMetrics(ctx context.Context, runID string, tick int64, values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check run %s: %w", runID, err)
	}
	if exists == 0 {
		return fmt.Errorf("append metrics for %s: %w", runID, ErrRunNotFound)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO tick_metrics (run_id, tick, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := sql.NullFloat64{Float64: values[name], Valid: !math.IsNaN(values[name])}
		if _, err := stmt.ExecContext(ctx, runID, tick, name, v); err != nil {
			return fmt.Errorf("failed to insert metric %s at tick %d: %w", name, tick, err)
		}
	}

	return tx.Commit()
}

// Metrics returns the series for one metric ordered by tick.
// NULL values read back as NaN.
func (s *SQLiteRunStore) Metrics(ctx context.Context, runID, name string) ([]Point, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, value FROM tick_metrics WHERE run_id = ? AND name = ? ORDER BY tick`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric %s: %w", name, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var v sql.NullFloat64
		if err := rows.Scan(&p.Tick, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		p.Value = math.NaN()
		if v.Valid {
			p.Value = v.Float64
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// MetricNames returns the distinct metric names recorded for a run.
func (s *SQLiteRunStore) MetricNames(ctx context.Context, runID string) ([]string, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT name FROM tick_metrics WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan metric name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
