package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arkilian/driftguard/internal/runlog"
	"github.com/arkilian/driftguard/pkg/types"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps artifacts, verdicts and the run log in one SQLite file.
// It also implements runlog.Sink.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool
	path   string
	mu     sync.Mutex // Write-only lock
}

// NewSQLiteStore opens (or creates) the results database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("results: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range AllSchemaSQL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("results: failed to execute schema statement: %w", err)
		}
	}

	readDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("results: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteStore{db: db, readDB: readDB, path: path}, nil
}

// Persist upserts one artifact.
func (s *SQLiteStore) Persist(ctx context.Context, a types.Artifact) error {
	detail, err := json.Marshal(nonNil(a.Detail))
	if err != nil {
		return fmt.Errorf("results: failed to encode detail: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, model, status, summary, detail, record_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, model) DO UPDATE SET
			status = excluded.status,
			summary = excluded.summary,
			detail = excluded.detail,
			record_count = excluded.record_count,
			created_at = excluded.created_at`,
		a.RunID, a.Model, string(a.Status), a.Summary, string(detail), a.RecordCount, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("results: failed to persist artifact %s/%s: %w", a.RunID, a.Model, err)
	}
	return nil
}

// ListArtifacts returns all artifacts of runID ordered by model.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]types.Artifact, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT run_id, model, status, summary, detail, record_count, created_at
		FROM artifacts WHERE run_id = ? ORDER BY model`, runID)
	if err != nil {
		return nil, fmt.Errorf("results: failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []types.Artifact
	for rows.Next() {
		var (
			a       types.Artifact
			status  string
			detail  string
			created int64
		)
		if err := rows.Scan(&a.RunID, &a.Model, &status, &a.Summary, &detail, &a.RecordCount, &created); err != nil {
			return nil, fmt.Errorf("results: failed to scan artifact: %w", err)
		}
		if err := json.Unmarshal([]byte(detail), &a.Detail); err != nil {
			return nil, fmt.Errorf("results: corrupt detail for %s/%s: %w", a.RunID, a.Model, err)
		}
		a.Status = types.Status(status)
		a.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordCount returns the record count of one artifact.
func (s *SQLiteStore) RecordCount(ctx context.Context, runID, model string) (int, error) {
	var n int
	err := s.readDB.QueryRowContext(ctx,
		`SELECT record_count FROM artifacts WHERE run_id = ? AND model = ?`, runID, model).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("results: failed to read record count: %w", err)
	}
	return n, nil
}

// PersistVerdict upserts the run's verdict.
func (s *SQLiteStore) PersistVerdict(ctx context.Context, v types.Verdict) error {
	counts, err := json.Marshal(nonNilInts(v.DistinctCounts))
	if err != nil {
		return fmt.Errorf("results: failed to encode counts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO verdicts (run_id, result, policy, baseline, distinct_counts, artifacts, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.Result(), v.Policy, v.Baseline, string(counts), v.Artifacts, v.EvaluatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("results: failed to persist verdict %s: %w", v.RunID, err)
	}
	return nil
}

// ClearRun deletes the artifacts and verdict of runID in one transaction.
// The run log is kept.
func (s *SQLiteStore) ClearRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("results: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("results: failed to clear artifacts of %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM verdicts WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("results: failed to clear verdict of %s: %w", runID, err)
	}
	return tx.Commit()
}

// LatestVerdict returns the verdict of runID, or the newest one when runID
// is empty.
func (s *SQLiteStore) LatestVerdict(ctx context.Context, runID string) (*types.Verdict, error) {
	query := `SELECT run_id, result, policy, baseline, distinct_counts, artifacts, evaluated_at FROM verdicts`
	var args []interface{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY evaluated_at DESC LIMIT 1`

	var (
		v         types.Verdict
		result    string
		counts    string
		evaluated int64
	)
	err := s.readDB.QueryRowContext(ctx, query, args...).Scan(
		&v.RunID, &result, &v.Policy, &v.Baseline, &counts, &v.Artifacts, &evaluated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("results: failed to read verdict: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &v.DistinctCounts); err != nil {
		return nil, fmt.Errorf("results: corrupt verdict counts: %w", err)
	}
	v.Pass = result == "TRUE"
	v.EvaluatedAt = time.Unix(0, evaluated).UTC()
	return &v, nil
}

// Append implements runlog.Sink.
func (s *SQLiteStore) Append(ctx context.Context, e runlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var model interface{}
	if e.Model != "" {
		model = e.Model
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_log (run_id, seq, function_name, model, message, logged_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Seq, e.Function, model, e.Message, e.Time.UnixNano())
	if err != nil {
		return fmt.Errorf("results: failed to append run log: %w", err)
	}
	return nil
}

// RunLog returns the persisted audit trail of a run in order.
func (s *SQLiteStore) RunLog(ctx context.Context, runID string) ([]runlog.Entry, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT run_id, seq, function_name, COALESCE(model, ''), message, logged_at
		FROM run_log WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("results: failed to read run log: %w", err)
	}
	defer rows.Close()

	var out []runlog.Entry
	for rows.Next() {
		var e runlog.Entry
		var logged int64
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Function, &e.Model, &e.Message, &logged); err != nil {
			return nil, fmt.Errorf("results: failed to scan run log: %w", err)
		}
		e.Time = time.Unix(0, logged).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes both connections.
func (s *SQLiteStore) Close() error {
	if err := s.readDB.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
