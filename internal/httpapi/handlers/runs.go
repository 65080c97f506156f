package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tessgen/internal/corpus"
	"tessgen/internal/fonts"
	"tessgen/internal/generator"
	"tessgen/internal/httpkit"
	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// modelNamePattern keeps artifact names safe to use as file names.
var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type CreateRunRequest struct {
	Name            string   `json:"name"`
	Texts           []string `json:"texts"`
	CorpusObjectKey string   `json:"corpus_object_key"`
	// Fonts left out means the worker's configured fonts; an explicit
	// empty list is rejected.
	Fonts     []string `json:"fonts"`
	ModelName string   `json:"model_name"`
}

func (req *CreateRunRequest) toRun() (*models.Run, error) {
	// Inline texts follow the corpus file rules, one payload per item.
	texts := make([]string, 0, len(req.Texts))
	for _, t := range req.Texts {
		if strings.ContainsAny(t, "\r\n") {
			return nil, errors.ValidationField("texts", "each text must be a single line")
		}
		if line, ok := corpus.Line(t); ok {
			texts = append(texts, line)
		}
	}
	objectKey := strings.TrimSpace(req.CorpusObjectKey)

	switch {
	case len(texts) > 0 && objectKey != "":
		return nil, errors.ValidationField("texts", "set either texts or corpus_object_key, not both")
	case len(texts) == 0 && objectKey == "":
		return nil, errors.ValidationField("texts", "texts or corpus_object_key is required")
	}

	var fontList []string
	if req.Fonts != nil {
		fontList = fonts.Resolve(req.Fonts)
		if len(fontList) == 0 {
			return nil, errors.ValidationField("fonts", "at least one font is required")
		}
	}

	model := strings.TrimSpace(req.ModelName)
	if model != "" && !modelNamePattern.MatchString(model) {
		return nil, errors.ValidationField("model_name", "only letters, digits, '_' and '-' are allowed")
	}

	return &models.Run{
		ID:              models.NewID(),
		Name:            strings.TrimSpace(req.Name),
		Status:          models.RunQueued,
		Texts:           texts,
		CorpusObjectKey: objectKey,
		Fonts:           fontList,
		ModelName:       model,
	}, nil
}

// CreateRun stores a queued run and hands it to the worker.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req CreateRunRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return errors.Validation("invalid json body").WithField("reason", err.Error())
	}

	run, err := req.toRun()
	if err != nil {
		return err
	}

	if err := h.store.CreateRun(ctx, run); err != nil {
		return errors.Wrap(err, "api.create_run", "store run")
	}

	if err := h.queue.Push(ctx, run.ID); err != nil {
		// The row would otherwise stay queued forever.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ferr := h.store.FinishRun(finishCtx, run.ID, models.RunTotals{
			Status:    models.RunFailed,
			ErrorText: "queue push failed",
		}); ferr != nil {
			h.log.FromContext(ctx).Error("mark unqueued run failed", "run_id", run.ID, "error", ferr.Error())
		}
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.create_run", "queue push failed")
	}

	h.log.FromContext(ctx).Info("run queued",
		"run_id", run.ID,
		"texts", len(run.Texts),
		"corpus_object_key", run.CorpusObjectKey,
		"fonts", len(run.Fonts),
	)
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"run": run})
	return nil
}

// GetRun returns a run and, while it is running, its live progress.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	runID := chi.URLParam(r, "runId")

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	body := map[string]any{"run": run}
	if h.progress != nil {
		p, ok, err := h.progress.Fetch(ctx, runID)
		switch {
		case err != nil:
			h.log.FromContext(ctx).Warn("progress fetch failed", "run_id", runID, "error", err.Error())
		case ok:
			body["progress"] = p
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, body)
	return nil
}

// ListRuns lists runs newest first, optionally filtered by ?status=.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !validStatus(status) {
		return errors.ValidationField("status", "unknown run status")
	}
	limit := httpkit.QueryInt(r, "limit", defaultListLimit, maxListLimit)

	runs, err := h.store.ListRuns(ctx, status, limit)
	if err != nil {
		return errors.Wrap(err, "api.list_runs", "list runs")
	}
	if runs == nil {
		runs = []models.Run{}
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
	return nil
}

// ListJobs pages through the recorded job outcomes of a run.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	runID := chi.URLParam(r, "runId")

	if _, err := h.store.GetRun(ctx, runID); err != nil {
		return err
	}

	outcome := strings.TrimSpace(r.URL.Query().Get("outcome"))
	switch generator.Outcome(outcome) {
	case "", generator.OutcomeSuccess, generator.OutcomeFailure:
	default:
		return errors.ValidationField("outcome", "outcome must be success or failure")
	}

	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return errors.ValidationField("offset", "offset must be a non-negative integer")
		}
		offset = v
	}

	jobs, err := h.store.ListJobs(ctx, runID, ports.JobFilter{
		Outcome: outcome,
		Limit:   httpkit.QueryInt(r, "limit", defaultListLimit, maxListLimit),
		Offset:  offset,
	})
	if err != nil {
		return errors.Wrap(err, "api.list_jobs", "list jobs")
	}
	if jobs == nil {
		jobs = []models.JobRecord{}
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	return nil
}

func validStatus(s string) bool {
	switch s {
	case models.RunQueued, models.RunRunning, models.RunCompleted, models.RunCanceled, models.RunFailed:
		return true
	}
	return false
}
