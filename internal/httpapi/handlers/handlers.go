package handlers

import (
	"context"

	"tessgen/internal/pkg/logger"
	"tessgen/internal/ports"
	"tessgen/internal/queue"
)

// RunQueue hands a run id to the worker.
type RunQueue interface {
	Push(ctx context.Context, runID string) error
}

// ProgressSource reads the live progress of a running run.
type ProgressSource interface {
	Fetch(ctx context.Context, runID string) (queue.Progress, bool, error)
}

// Checker is a named dependency check for deep health checks.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Store    ports.RunStore
	Queue    RunQueue
	Progress ProgressSource
	SP       ports.StorageProvider
	Checks   []Checker
	Log      *logger.Logger
}

type Handler struct {
	store    ports.RunStore
	queue    RunQueue
	progress ProgressSource
	sp       ports.StorageProvider
	checks   []Checker
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store:    d.Store,
		queue:    d.Queue,
		progress: d.Progress,
		sp:       d.SP,
		checks:   d.Checks,
		log:      log.WithComponent("api"),
	}
}
