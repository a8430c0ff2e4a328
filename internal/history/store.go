package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cleanarr/internal/cleanup"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; old databases must be deleted or pruned.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different version.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists the run audit log.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one recorded cleanup run.
type Run struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	DryRun          bool
	MoviesDeleted   int
	MoviesFailed    int
	SeriesDeleted   int
	SeriesFailed    int
	EpisodesDeleted int
	EpisodesFailed  int
	Skipped         int
	Failures        int
}

// Deletion is one recorded deletion attempt within a run.
type Deletion struct {
	RunID     string
	Category  string
	Title     string
	RemoteID  string
	Status    string
	Error     string
	CreatedAt time.Time
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, runID string, startedAt time.Time, dryRun bool) error {
	return s.execWithRetry(ctx,
		"INSERT INTO runs (id, started_at, dry_run) VALUES (?, ?, ?)",
		runID, startedAt.UTC().Format(time.RFC3339), boolToInt(dryRun))
}

// FinishRun records the outcome counters of a completed run.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, result cleanup.Result) error {
	return s.execWithRetry(ctx,
		`UPDATE runs SET finished_at = ?, movies_deleted = ?, movies_failed = ?,
		 series_deleted = ?, series_failed = ?, episodes_deleted = ?,
		 episodes_failed = ?, skipped = ?, failures = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339),
		result.MoviesDeleted, result.MoviesFailed,
		result.SeriesDeleted, result.SeriesFailed,
		result.EpisodesDeleted, result.EpisodesFailed,
		result.Skipped, result.Failures, runID)
}

// RecordDeletion appends one deletion attempt to the run's log.
func (s *Store) RecordDeletion(ctx context.Context, runID, category, title, remoteID string, deletionErr error) error {
	status := "deleted"
	errText := ""
	if deletionErr != nil {
		status = "failed"
		errText = deletionErr.Error()
	}
	return s.execWithRetry(ctx,
		"INSERT INTO deletions (run_id, category, title, remote_id, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		runID, category, title, remoteID, status, errText, time.Now().UTC().Format(time.RFC3339))
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, ''), dry_run,
		        movies_deleted, movies_failed, series_deleted, series_failed,
		        episodes_deleted, episodes_failed, skipped, failures
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                 Run
			startedAt, finished string
			dryRun              int
		)
		if err := rows.Scan(&run.ID, &startedAt, &finished, &dryRun,
			&run.MoviesDeleted, &run.MoviesFailed,
			&run.SeriesDeleted, &run.SeriesFailed,
			&run.EpisodesDeleted, &run.EpisodesFailed,
			&run.Skipped, &run.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finished != "" {
			run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		}
		run.DryRun = dryRun != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Deletions returns the deletion log of one run in insertion order.
func (s *Store) Deletions(ctx context.Context, runID string) ([]Deletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, category, title, COALESCE(remote_id, ''), status, COALESCE(error, ''), created_at
		 FROM deletions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query deletions: %w", err)
	}
	defer rows.Close()

	var deletions []Deletion
	for rows.Next() {
		var (
			deletion  Deletion
			createdAt string
		)
		if err := rows.Scan(&deletion.RunID, &deletion.Category, &deletion.Title,
			&deletion.RemoteID, &deletion.Status, &deletion.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan deletion: %w", err)
		}
		deletion.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		deletions = append(deletions, deletion)
	}
	return deletions, rows.Err()
}

// Prune deletes runs older than the retention window, cascading to
// their deletion logs.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
		if execErr != nil {
			return execErr
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
