// Package ledger records job outcomes of a run into a ports.RunStore.
package ledger

import (
	"context"
	"time"

	"tessgen/internal/generator"
	"tessgen/internal/models"
	"tessgen/internal/ports"
)

// Recorder is a generator.ResultSink that persists every JobResult of one run.
type Recorder struct {
	store ports.RunStore
	runID string
	now   func() time.Time
}

var _ generator.ResultSink = (*Recorder)(nil)

func NewRecorder(store ports.RunStore, runID string) *Recorder {
	return &Recorder{store: store, runID: runID, now: time.Now}
}

func (r *Recorder) Accept(ctx context.Context, res generator.JobResult) error {
	return r.store.RecordJob(ctx, Record(r.runID, res, r.now()))
}

// Record converts a JobResult into its persisted form.
func Record(runID string, res generator.JobResult, at time.Time) models.JobRecord {
	return models.JobRecord{
		RunID:      runID,
		Index:      res.Job.Index,
		Text:       res.Job.Text,
		Font:       res.Job.Variant,
		Artifact:   res.Artifact,
		Outcome:    string(res.Outcome),
		Diagnostic: res.Diagnostic,
		DurationMS: res.Duration.Milliseconds(),
		CreatedAt:  at.UTC(),
	}
}

// Totals maps a finished run summary to the row update of its run.
func Totals(s *generator.RunSummary) models.RunTotals {
	status := models.RunCompleted
	if s.Canceled {
		status = models.RunCanceled
	}
	return models.RunTotals{
		Status:    status,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
	}
}
