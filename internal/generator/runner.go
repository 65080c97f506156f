package generator

import (
	"context"
	"os"
	"time"

	"tessgen/internal/config"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/renderer"
)

// ResultSink receives every JobResult in completion order, for example to
// persist it. Sink errors are logged and never affect the run.
type ResultSink interface {
	Accept(ctx context.Context, res JobResult) error
}

type Options struct {
	Config   config.Generator
	Renderer renderer.Client
	Log      *logger.Logger
	// Report receives throttled progress snapshots; nil disables reporting.
	Report Reporter
	Sink   ResultSink
	Clock  func() time.Time
}

// Runner executes one corpus x variants run end to end.
type Runner struct {
	cfg      config.Generator
	renderer renderer.Client
	pool     *Pool
	log      *logger.Logger
	report   Reporter
	sink     ResultSink
	clock    func() time.Time
}

func NewRunner(opts Options) *Runner {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		cfg:      opts.Config,
		renderer: opts.Renderer,
		pool:     NewPool(opts.Config.WorkerCount, log),
		log:      log.WithComponent("runner"),
		report:   opts.Report,
		sink:     opts.Sink,
		clock:    clock,
	}
}

func (r *Runner) Workers() int { return r.pool.Workers() }

// Run renders every (text, variant) pair. A configuration error is returned
// before anything is dispatched; job failures are only counted. When ctx is
// canceled the summary covers the jobs that finished and Canceled is set.
func (r *Runner) Run(ctx context.Context, corpus, variants []string) (*RunSummary, error) {
	log := r.log.FromContext(ctx)

	jobs, err := Enumerate(corpus, variants)
	if err != nil {
		runsTotal.WithLabelValues(runRejected).Inc()
		return nil, err
	}
	if err := r.prepareDirs(); err != nil {
		runsTotal.WithLabelValues(runRejected).Inc()
		return nil, err
	}

	naming := Naming{
		OutputDir: r.cfg.OutputDir,
		ModelName: r.cfg.ModelName,
		Width:     IndexWidth(len(jobs)),
	}
	exec := NewJobExecutor(r.renderer, naming, r.cfg.StagingDir, r.log)
	tracker := NewProgressTracker(len(jobs), ProgressOptions{
		Batch:    r.cfg.ProgressBatch,
		Interval: r.cfg.ProgressInterval,
		Report:   r.report,
		Clock:    r.clock,
	})
	failures := NewFailureCollector(r.cfg.FailureSampleLimit)

	log.Info("run started",
		"texts", len(corpus),
		"fonts", len(variants),
		"jobs", len(jobs),
		"workers", r.pool.Workers(),
		"output_dir", r.cfg.OutputDir,
	)

	sinkCtx := context.WithoutCancel(ctx)
	for res := range r.pool.Dispatch(ctx, jobs, exec) {
		tracker.Observe(res)
		failures.Observe(res)
		observeResult(res)
		if r.sink != nil {
			if err := r.sink.Accept(sinkCtx, res); err != nil {
				log.Warn("result sink failed", "job", res.Job.Index, "error", err.Error())
			}
		}
	}

	snap := tracker.Snapshot()
	summary := &RunSummary{
		Total:       snap.Total,
		Completed:   snap.Completed,
		Succeeded:   snap.Succeeded,
		Failed:      snap.Failed,
		OutputDir:   r.cfg.OutputDir,
		Diagnostics: failures.Samples(),
		Elapsed:     snap.Elapsed,
		Canceled:    ctx.Err() != nil && snap.Completed < snap.Total,
	}

	status := runCompleted
	if summary.Canceled {
		status = runCanceled
	}
	runsTotal.WithLabelValues(status).Inc()

	log.Info("run finished",
		"status", status,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped(),
		"diagnostics_dropped", failures.Dropped(),
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return summary, nil
}

func (r *Runner) prepareDirs() error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.CodeConfiguration, "generator.run", "create output directory")
	}
	if r.cfg.StagingDir != "" {
		if err := os.MkdirAll(r.cfg.StagingDir, 0o700); err != nil {
			return errors.WrapWithCode(err, errors.CodeConfiguration, "generator.run", "create staging directory")
		}
	}
	return nil
}

type multiSink []ResultSink

// MultiSink hands every result to each non-nil sink in order and returns
// the first error after all of them ran.
func MultiSink(sinks ...ResultSink) ResultSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Accept(ctx context.Context, res JobResult) error {
	var first error
	for _, s := range m {
		if err := s.Accept(ctx, res); err != nil && first == nil {
			first = err
		}
	}
	return first
}
