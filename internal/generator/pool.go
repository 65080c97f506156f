package generator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tessgen/internal/config"
	"tessgen/internal/pkg/logger"
)

// Pool runs jobs on a fixed number of worker goroutines.
type Pool struct {
	workers int
	log     *logger.Logger
}

// NewPool clamps workers to at least one.
func NewPool(workers int, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pool{
		workers: config.ClampWorkers(workers),
		log:     log.WithComponent("pool"),
	}
}

func (p *Pool) Workers() int { return p.workers }

// Dispatch hands jobs to workers in slice order and streams one result per
// dispatched job, in completion order. The channel is closed once every
// dispatched job has produced its result.
//
// Canceling ctx stops dispatch; jobs already handed to a worker still
// report a result, so the channel always drains.
func (p *Pool) Dispatch(ctx context.Context, jobs []Job, exec Executor) <-chan JobResult {
	results := make(chan JobResult, p.workers)
	queue := make(chan Job)

	var g errgroup.Group

	g.Go(func() error {
		defer close(queue)
		for i, job := range jobs {
			if ctx.Err() != nil {
				p.log.Info("dispatch stopped", "dispatched", i, "skipped", len(jobs)-i)
				return nil
			}
			select {
			case queue <- job:
			case <-ctx.Done():
				p.log.Info("dispatch stopped", "dispatched", i, "skipped", len(jobs)-i)
				return nil
			}
		}
		return nil
	})

	for range p.workers {
		g.Go(func() error {
			for job := range queue {
				jobsInFlight.Inc()
				res := exec.Execute(ctx, job)
				jobsInFlight.Dec()
				results <- res
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}
