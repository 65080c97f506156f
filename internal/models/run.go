package models

import "time"

// Run statuses.
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCanceled  = "canceled"
	RunFailed    = "failed"
)

// Run is one corpus x fonts render request and, once finished, its totals.
type Run struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`

	// Texts is the inline corpus. When empty, CorpusObjectKey names a
	// storage object holding one text per line.
	Texts           []string `json:"texts,omitempty"`
	CorpusObjectKey string   `json:"corpus_object_key,omitempty"`
	Fonts           []string `json:"fonts,omitempty"`
	ModelName       string   `json:"model_name,omitempty"`

	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	ErrorText string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the run will not change any more.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunCompleted, RunCanceled, RunFailed:
		return true
	}
	return false
}

// RunTotals is what a finished run writes back to its row.
type RunTotals struct {
	Status    string
	Total     int
	Succeeded int
	Failed    int
	ErrorText string
}

// JobRecord is the persisted outcome of one job in a run.
type JobRecord struct {
	RunID      string    `json:"run_id"`
	Index      uint      `json:"index"`
	Text       string    `json:"text"`
	Font       string    `json:"font"`
	Artifact   string    `json:"artifact"`
	Outcome    string    `json:"outcome"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
