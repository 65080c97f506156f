package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tessgen/internal/httpkit"
	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Schema is applied in order by EnsureSchema. Every statement is idempotent.
var Schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
    id                TEXT PRIMARY KEY,
    name              TEXT,
    status            TEXT NOT NULL,
    texts             TEXT[] NOT NULL DEFAULT '{}',
    corpus_object_key TEXT,
    fonts             TEXT[] NOT NULL DEFAULT '{}',
    model_name        TEXT,
    total             INTEGER NOT NULL DEFAULT 0,
    succeeded         INTEGER NOT NULL DEFAULT 0,
    failed            INTEGER NOT NULL DEFAULT 0,
    error_text        TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at        TIMESTAMPTZ,
    finished_at       TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS runs_status_created_idx ON runs (status, created_at DESC)`,
	`
CREATE TABLE IF NOT EXISTS run_jobs (
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    job_index   BIGINT NOT NULL,
    text        TEXT NOT NULL,
    font        TEXT NOT NULL,
    artifact    TEXT NOT NULL,
    outcome     TEXT NOT NULL,
    diagnostic  TEXT,
    duration_ms BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, job_index)
)`,
}

var _ ports.RunStore = (*RunRepository)(nil)

// RunRepository is the shared run ledger used by the API and the worker.
type RunRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "repositories.schema", "apply run schema")
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *RunRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO runs (id, name, status, texts, corpus_object_key, fonts, model_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, run.ID, nullIfEmpty(run.Name), run.Status, nonNil(run.Texts), nullIfEmpty(run.CorpusObjectKey),
		nonNil(run.Fonts), nullIfEmpty(run.ModelName),
	).Scan(&run.CreatedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.ValidationField("id", "run already exists")
		}
		return errors.Wrap(err, "repositories.runs", "insert run")
	}
	return nil
}

const selectRun = `
	SELECT id, COALESCE(name,''), status, texts, COALESCE(corpus_object_key,''), fonts,
	       COALESCE(model_name,''), total, succeeded, failed, COALESCE(error_text,''),
	       created_at, started_at, finished_at
	FROM runs`

func scanRun(row pgx.Row) (*models.Run, error) {
	var run models.Run
	err := row.Scan(
		&run.ID, &run.Name, &run.Status, &run.Texts, &run.CorpusObjectKey, &run.Fonts,
		&run.ModelName, &run.Total, &run.Succeeded, &run.Failed, &run.ErrorText,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx, selectRun+` WHERE id=$1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("run", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "repositories.runs", "get run")
	}
	return run, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, status string, limit int) ([]models.Run, error) {
	limit = pageSize(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.Query(ctx, selectRun+`
			WHERE status=$1
			ORDER BY created_at DESC
			LIMIT $2`, status, limit)
	} else {
		rows, err = r.db.Query(ctx, selectRun+`
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		if httpkit.IsUndefinedTable(err) {
			return []models.Run{}, nil
		}
		return nil, errors.Wrap(err, "repositories.runs", "list runs")
	}
	defer rows.Close()

	out := make([]models.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "repositories.runs", "scan run")
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "repositories.runs", "iterate runs")
	}
	return out, nil
}

func (r *RunRepository) MarkRunning(ctx context.Context, id string) error {
	return r.exec(ctx, id,
		`UPDATE runs SET status=$2, started_at=NOW(), finished_at=NULL, error_text=NULL WHERE id=$1`,
		id, models.RunRunning,
	)
}

func (r *RunRepository) FinishRun(ctx context.Context, id string, t models.RunTotals) error {
	return r.exec(ctx, id,
		`UPDATE runs SET status=$2, total=$3, succeeded=$4, failed=$5, error_text=$6, finished_at=NOW() WHERE id=$1`,
		id, t.Status, t.Total, t.Succeeded, t.Failed, nullIfEmpty(t.ErrorText),
	)
}

func (r *RunRepository) exec(ctx context.Context, id, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "repositories.runs", "update run")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("run", id)
	}
	return nil
}

func (r *RunRepository) RecordJob(ctx context.Context, rec models.JobRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO run_jobs (run_id, job_index, text, font, artifact, outcome, diagnostic, duration_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (run_id, job_index) DO UPDATE SET
		  outcome=EXCLUDED.outcome, diagnostic=EXCLUDED.diagnostic,
		  duration_ms=EXCLUDED.duration_ms, created_at=EXCLUDED.created_at
	`, rec.RunID, int64(rec.Index), rec.Text, rec.Font, rec.Artifact, rec.Outcome,
		nullIfEmpty(rec.Diagnostic), rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "repositories.jobs", "insert job")
	}
	return nil
}

func (r *RunRepository) ListJobs(ctx context.Context, runID string, f ports.JobFilter) ([]models.JobRecord, error) {
	limit := pageSize(f.Limit)
	offset := max(f.Offset, 0)

	rows, err := r.db.Query(ctx, `
		SELECT run_id, job_index, text, font, artifact, outcome, COALESCE(diagnostic,''), duration_ms, created_at
		FROM run_jobs
		WHERE run_id=$1 AND ($2 = '' OR outcome=$2)
		ORDER BY job_index
		LIMIT $3 OFFSET $4
	`, runID, f.Outcome, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "repositories.jobs", "list jobs")
	}
	defer rows.Close()

	out := []models.JobRecord{}
	for rows.Next() {
		var (
			rec   models.JobRecord
			index int64
		)
		if err := rows.Scan(&rec.RunID, &index, &rec.Text, &rec.Font, &rec.Artifact,
			&rec.Outcome, &rec.Diagnostic, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "repositories.jobs", "scan job")
		}
		rec.Index = uint(index)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "repositories.jobs", "iterate jobs")
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
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
