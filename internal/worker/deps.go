package worker

import (
	"context"
	"time"

	"tessgen/internal/pkg/logger"
)

// RunQueue hands out run ids. Pop returns "" when timeout passes first.
type RunQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

// RunProcessor renders one run.
type RunProcessor interface {
	ProcessRun(ctx context.Context, runID string) error
}

type Deps struct {
	Queue     RunQueue
	Processor RunProcessor
	Log       *logger.Logger
	// PopTimeout bounds each blocking pop so shutdown is noticed; zero means 5s.
	PopTimeout time.Duration
	// RetryDelay is the pause after a queue error; zero means 1s.
	RetryDelay time.Duration
}
