// Package worker pulls run ids off the queue and processes them one at a time.
package worker

import (
	"context"
	"time"

	"tessgen/internal/pkg/logger"
)

func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	popTimeout := d.PopTimeout
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	retryDelay := d.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	for {
		if ctx.Err() != nil {
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		}

		runID, err := d.Queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying", "error", err.Error())
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if runID == "" {
			continue
		}

		runCtx := logger.ContextWithRunID(ctx, runID)
		runLog := log.WithRunID(runID)

		runLog.Info("processing run")
		startTime := time.Now()

		if err := d.Processor.ProcessRun(runCtx, runID); err != nil {
			runLog.Error("run failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			runLog.Info("run completed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
	}
}
