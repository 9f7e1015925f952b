package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultBusyTimeout = 2 * time.Second
	defaultProjectKey  = "default"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the history database at path. A non-positive
// busyTimeout falls back to two seconds.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores the run and its rule outcomes in one transaction. Saving
// the same run id again replaces the earlier row.
func (s *Store) SaveRun(ctx context.Context, projectKey string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = normalizeProjectKey(projectKey)
	if strings.TrimSpace(run.RunID) == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	if run.SchemaVersion == 0 {
		run.SchemaVersion = SchemaVersion
	}
	if run.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported run schema version %d", run.SchemaVersion)
	}

	return s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (
  run_id, project_key, schema_version, ts_utc, duration_ms, passed, exit_code,
  unit_count, edge_count, rule_count, violation_count,
  failed_count, warning_count, config_error_count, timeout_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  project_key=excluded.project_key,
  schema_version=excluded.schema_version,
  ts_utc=excluded.ts_utc,
  duration_ms=excluded.duration_ms,
  passed=excluded.passed,
  exit_code=excluded.exit_code,
  unit_count=excluded.unit_count,
  edge_count=excluded.edge_count,
  rule_count=excluded.rule_count,
  violation_count=excluded.violation_count,
  failed_count=excluded.failed_count,
  warning_count=excluded.warning_count,
  config_error_count=excluded.config_error_count,
  timeout_count=excluded.timeout_count
`,
			run.RunID,
			projectKey,
			run.SchemaVersion,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
			boolToInt(run.Passed),
			run.ExitCode,
			run.Units,
			run.Edges,
			run.Rules,
			run.Violations,
			run.Failed,
			run.Warnings,
			run.ConfigErrors,
			run.Timeouts,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_outcomes WHERE run_id = ?`, run.RunID); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, o := range run.Outcomes {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rule_outcomes (run_id, rule, kind, severity, status, violation_count)
VALUES (?, ?, ?, ?, ?, ?)`, run.RunID, o.Rule, o.Kind, o.Severity, o.Status, o.Violations); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// LoadRuns returns the project's runs at or after since in chronological
// order. A positive limit keeps only the most recent runs.
func (s *Store) LoadRuns(ctx context.Context, projectKey string, since time.Time, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = normalizeProjectKey(projectKey)
	query := `
SELECT
  run_id, project_key, schema_version, ts_utc, duration_ms, passed, exit_code,
  unit_count, edge_count, rule_count, violation_count,
  failed_count, warning_count, config_error_count, timeout_count
FROM runs
WHERE project_key = ?`
	args := []any{projectKey}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc DESC, run_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			tsRaw      string
			durationMS int64
			passed     int
			run        Run
		)
		if err := rows.Scan(
			&run.RunID,
			&run.ProjectKey,
			&run.SchemaVersion,
			&tsRaw,
			&durationMS,
			&passed,
			&run.ExitCode,
			&run.Units,
			&run.Edges,
			&run.Rules,
			&run.Violations,
			&run.Failed,
			&run.Warnings,
			&run.ConfigErrors,
			&run.Timeouts,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.Passed = passed != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	// Rows came newest first so LIMIT keeps the latest; flip to chronological.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	for i := range runs {
		outcomes, err := s.loadOutcomes(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Outcomes = outcomes
	}
	return runs, nil
}

func (s *Store) loadOutcomes(ctx context.Context, runID string) ([]RuleOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT rule, kind, severity, status, violation_count
FROM rule_outcomes WHERE run_id = ? ORDER BY rule ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load outcomes for run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make([]RuleOutcome, 0)
	for rows.Next() {
		var o RuleOutcome
		if err := rows.Scan(&o.Rule, &o.Kind, &o.Severity, &o.Status, &o.Violations); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}

func normalizeProjectKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return defaultProjectKey
	}
	return key
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
