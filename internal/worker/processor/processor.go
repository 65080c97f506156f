package processor

import (
	"context"
	"path/filepath"
	"time"

	"tessgen/internal/config"
	"tessgen/internal/fonts"
	"tessgen/internal/generator"
	"tessgen/internal/ledger"
	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/ports"
	"tessgen/internal/renderer"
)

// maxErrorText bounds the error text stored on a failed run.
const maxErrorText = 2000

// ProgressSink turns live progress of a run into a generator.Reporter.
type ProgressSink interface {
	Reporter(ctx context.Context, runID string) generator.Reporter
}

type Deps struct {
	Config   config.Config
	Store    ports.RunStore
	Renderer renderer.Client
	SP       ports.StorageProvider
	Progress ProgressSink
	Log      *logger.Logger
}

// Processor executes queued runs end to end.
type Processor struct {
	cfg      config.Config
	store    ports.RunStore
	renderer renderer.Client
	progress ProgressSink
	log      *logger.Logger

	inputs  *InputHandler
	outputs *OutputHandler
	cleanup *Cleanup
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	return &Processor{
		cfg:      d.Config,
		store:    d.Store,
		renderer: d.Renderer,
		progress: d.Progress,
		log:      log,
		inputs:   NewInputHandler(d.SP),
		outputs:  NewOutputHandler(d.SP, d.Config.Storage.PublishArtifacts, log),
		cleanup:  NewCleanup(d.Config.Storage.CleanupLocal, d.SP),
	}
}

// OutputDir is where the artifacts of runID are rendered.
func (p *Processor) OutputDir(runID string) string {
	return filepath.Join(p.cfg.Generator.OutputDir, "runs", runID)
}

// ProcessRun renders one queued run and writes its totals back. Runs that
// are already terminal are skipped so a redelivered id is harmless.
func (p *Processor) ProcessRun(ctx context.Context, runID string) error {
	log := p.log.FromContext(ctx).WithRunID(runID)

	// 1. Load the run
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return errors.Wrap(err, "processor.fetch", "failed to fetch run")
	}
	if run.Terminal() {
		log.Info("run already finished, skipping", "status", run.Status)
		return nil
	}

	// 2. Mark as running
	if err := p.store.MarkRunning(ctx, runID); err != nil {
		return p.failRun(ctx, runID, errors.Wrap(err, "processor.status", "failed to mark run as running"))
	}

	// 3. Resolve inputs
	texts, err := p.inputs.Corpus(ctx, run)
	if err != nil {
		return p.failRun(ctx, runID, err)
	}
	variants := fonts.Resolve(run.Fonts)
	if len(run.Fonts) == 0 {
		variants = fonts.Resolve(p.cfg.Fonts)
	}
	log.Debug("inputs resolved", "texts", len(texts), "fonts", len(variants))

	// 4. Render
	gen := p.cfg.Generator
	gen.OutputDir = p.OutputDir(runID)
	if run.ModelName != "" {
		gen.ModelName = run.ModelName
	}

	artifacts := &artifactCollector{}
	var report generator.Reporter
	if p.progress != nil {
		report = p.progress.Reporter(ctx, runID)
	}
	runner := generator.NewRunner(generator.Options{
		Config:   gen,
		Renderer: p.renderer,
		Log:      p.log.WithRunID(runID),
		Report:   generator.MultiReporter(report, generator.LogReporter(log)),
		Sink:     generator.MultiSink(ledger.NewRecorder(p.store, runID), artifacts),
	})

	start := time.Now()
	summary, err := runner.Run(logger.ContextWithRunID(ctx, runID), texts, variants)
	if err != nil {
		return p.failRun(ctx, runID, err)
	}

	// 5. Publish artifacts
	published := p.outputs.Publish(ctx, runID, gen.OutputDir, artifacts.Names())

	// 6. Remove local copies once they live elsewhere
	if published > 0 {
		if err := p.cleanup.CleanupRun(gen.OutputDir); err != nil {
			log.Warn("local cleanup failed", "error", err.Error())
		}
	}

	// 7. Write totals back
	if err := p.store.FinishRun(context.WithoutCancel(ctx), runID, ledger.Totals(summary)); err != nil {
		return errors.Wrap(err, "processor.finish", "failed to finish run")
	}

	log.Info("run processed",
		"status", ledger.Totals(summary).Status,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"published", published,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Processor) failRun(ctx context.Context, runID string, cause error) error {
	log := p.log.FromContext(ctx).WithRunID(runID)

	msg := cause.Error()
	if len(msg) > maxErrorText {
		msg = msg[:maxErrorText]
	}

	var runErr *errors.Error
	if errors.As(cause, &runErr) {
		log.Error("run failed",
			"code", string(runErr.Code),
			"op", runErr.Op,
			"message", runErr.Message,
		)
	} else {
		log.Error("run failed", "error", msg)
	}

	err := p.store.FinishRun(context.WithoutCancel(ctx), runID, models.RunTotals{
		Status:    models.RunFailed,
		ErrorText: msg,
	})
	if err != nil {
		log.Warn("failed to record run failure", "error", err.Error())
	}
	return cause
}
