package ports

import (
	"context"

	"tessgen/internal/models"
)

// JobFilter narrows ListJobs. Zero values mean no filter and the default page.
type JobFilter struct {
	Outcome string
	Limit   int
	Offset  int
}

// RunStore persists runs and their job outcomes. GetRun returns a
// NOT_FOUND error for unknown ids.
type RunStore interface {
	CreateRun(ctx context.Context, r *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, status string, limit int) ([]models.Run, error)
	MarkRunning(ctx context.Context, id string) error
	FinishRun(ctx context.Context, id string, totals models.RunTotals) error

	RecordJob(ctx context.Context, rec models.JobRecord) error
	ListJobs(ctx context.Context, runID string, f JobFilter) ([]models.JobRecord, error)
}
