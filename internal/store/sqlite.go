// Package store keeps a local run ledger in SQLite so that one-shot CLI runs
// can be inspected after the fact.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"

	_ "modernc.org/sqlite"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id                TEXT PRIMARY KEY,
    name              TEXT,
    status            TEXT NOT NULL,
    texts_json        TEXT NOT NULL DEFAULT '[]',
    corpus_object_key TEXT,
    fonts_json        TEXT NOT NULL DEFAULT '[]',
    model_name        TEXT,
    total             INTEGER NOT NULL DEFAULT 0,
    succeeded         INTEGER NOT NULL DEFAULT 0,
    failed            INTEGER NOT NULL DEFAULT 0,
    error_text        TEXT,
    created_at        DATETIME NOT NULL,
    started_at        DATETIME,
    finished_at       DATETIME
)`

const createJobsTable = `
CREATE TABLE IF NOT EXISTS run_jobs (
    run_id      TEXT NOT NULL,
    job_index   INTEGER NOT NULL,
    text        TEXT NOT NULL,
    font        TEXT NOT NULL,
    artifact    TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    diagnostic  TEXT,
    duration_ms INTEGER NOT NULL,
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (run_id, job_index)
)`

// Compile-time interface satisfaction check.
var _ ports.RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements ports.RunStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []struct{ name, sql string }{
		{"set WAL mode", "PRAGMA journal_mode=WAL"},
		{"set busy timeout", "PRAGMA busy_timeout = 5000"},
		{"create runs table", createRunsTable},
		{"create run_jobs table", createJobsTable},
	} {
		if _, err := db.Exec(stmt.sql); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", stmt.name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, r *models.Run) error {
	texts, fonts, err := encodeLists(r)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (
			id, name, status, texts_json, corpus_object_key, fonts_json, model_name,
			total, succeeded, failed, error_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Status, texts, r.CorpusObjectKey, fonts, r.ModelName,
		r.Total, r.Succeeded, r.Failed, r.ErrorText, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const selectRun = `SELECT id, COALESCE(name,''), status, texts_json, COALESCE(corpus_object_key,''),
	fonts_json, COALESCE(model_name,''), total, succeeded, failed, COALESCE(error_text,''),
	created_at, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		r            models.Run
		texts, fonts string
		started      sql.NullTime
		finished     sql.NullTime
	)
	if err := row.Scan(
		&r.ID, &r.Name, &r.Status, &texts, &r.CorpusObjectKey,
		&fonts, &r.ModelName, &r.Total, &r.Succeeded, &r.Failed, &r.ErrorText,
		&r.CreatedAt, &started, &finished,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(texts), &r.Texts); err != nil {
		return nil, fmt.Errorf("decode texts: %w", err)
	}
	if err := json.Unmarshal([]byte(fonts), &r.Fonts); err != nil {
		return nil, fmt.Errorf("decode fonts: %w", err)
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *SQLiteStore) ListRuns(ctx context.Context, status string, limit int) ([]models.Run, error) {
	limit = pageSize(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.db.QueryContext(ctx, selectRun+` WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`, status, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Run, 0, limit)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id,
		`UPDATE runs SET status = ?, started_at = ?, finished_at = NULL, error_text = NULL WHERE id = ?`,
		models.RunRunning, time.Now().UTC(), id,
	)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, t models.RunTotals) error {
	return s.update(ctx, id,
		`UPDATE runs SET status = ?, total = ?, succeeded = ?, failed = ?, error_text = ?, finished_at = ? WHERE id = ?`,
		t.Status, t.Total, t.Succeeded, t.Failed, t.ErrorText, time.Now().UTC(), id,
	)
}

func (s *SQLiteStore) update(ctx context.Context, id, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return errors.NotFound("run", id)
	}
	return nil
}

// RecordJob stores one job outcome. Recording the same index twice keeps
// the latest outcome.
func (s *SQLiteStore) RecordJob(ctx context.Context, rec models.JobRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_jobs (run_id, job_index, text, font, artifact, outcome, diagnostic, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, job_index) DO UPDATE SET
		   outcome = excluded.outcome, diagnostic = excluded.diagnostic,
		   duration_ms = excluded.duration_ms, created_at = excluded.created_at`,
		rec.RunID, rec.Index, rec.Text, rec.Font, rec.Artifact, rec.Outcome, rec.Diagnostic, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// ListJobs returns the jobs of a run in index order.
func (s *SQLiteStore) ListJobs(ctx context.Context, runID string, f ports.JobFilter) ([]models.JobRecord, error) {
	limit := pageSize(f.Limit)
	offset := max(f.Offset, 0)

	query := `SELECT run_id, job_index, text, font, artifact, outcome, COALESCE(diagnostic,''), duration_ms, created_at
		FROM run_jobs WHERE run_id = ?`
	args := []any{runID}
	if f.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, f.Outcome)
	}
	query += ` ORDER BY job_index LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []models.JobRecord{}
	for rows.Next() {
		var rec models.JobRecord
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Text, &rec.Font, &rec.Artifact,
			&rec.Outcome, &rec.Diagnostic, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

func encodeLists(r *models.Run) (texts, fonts string, err error) {
	tb, err := json.Marshal(nonNil(r.Texts))
	if err != nil {
		return "", "", fmt.Errorf("encode texts: %w", err)
	}
	fb, err := json.Marshal(nonNil(r.Fonts))
	if err != nil {
		return "", "", fmt.Errorf("encode fonts: %w", err)
	}
	return string(tb), string(fb), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}
