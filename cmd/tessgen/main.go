// Command tessgen renders a training corpus with every configured font in
// parallel and prints progress and a final summary to stdout.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessgen/internal/config"
	"tessgen/internal/corpus"
	"tessgen/internal/fonts"
	"tessgen/internal/generator"
	"tessgen/internal/ledger"
	"tessgen/internal/models"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/pkg/shutdown"
	"tessgen/internal/renderer"
	"tessgen/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.NewDefault()
	cfg := config.Load()

	ctx, cancel := shutdown.SignalContext(context.Background(), log)
	defer cancel()

	texts, err := corpus.LoadFile(cfg.CorpusFile)
	if err != nil {
		return fatal(log, "failed to load corpus", err)
	}
	variants := fonts.Resolve(cfg.Fonts)
	// Reject an empty corpus or font list before any state is written.
	if _, err := generator.Enumerate(texts, variants); err != nil {
		return fatal(log, "nothing to render", err)
	}

	fmt.Printf("texts: %d\n", len(texts))
	fmt.Printf("fonts: %d\n", len(variants))
	fmt.Printf("expected images: %d\n", len(texts)*len(variants))
	fmt.Printf("workers: %d\n", cfg.Generator.WorkerCount)

	client, err := renderer.New(cfg.Render)
	if err != nil {
		return fatal(log, "failed to initialize renderer", err)
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer srv.Close()
	}

	var (
		sink   generator.ResultSink
		runDB  *store.SQLiteStore
		runRow *models.Run
	)
	if cfg.RunDBPath != "" {
		runDB, err = store.NewSQLiteStore(cfg.RunDBPath)
		if err != nil {
			return fatal(log, "failed to open run ledger", err)
		}
		defer runDB.Close()

		runRow = &models.Run{
			ID:        models.NewID(),
			Name:      "cli",
			Status:    models.RunQueued,
			Fonts:     variants,
			ModelName: cfg.Generator.ModelName,
		}
		if err := runDB.CreateRun(ctx, runRow); err != nil {
			return fatal(log, "failed to record run", err)
		}
		if err := runDB.MarkRunning(ctx, runRow.ID); err != nil {
			return fatal(log, "failed to record run", err)
		}
		sink = ledger.NewRecorder(runDB, runRow.ID)
		log = log.WithRunID(runRow.ID)
		ctx = logger.ContextWithRunID(ctx, runRow.ID)
	}

	runner := generator.NewRunner(generator.Options{
		Config:   cfg.Generator,
		Renderer: client,
		Log:      log,
		Report:   generator.LineReporter(os.Stdout),
		Sink:     sink,
	})

	summary, err := runner.Run(ctx, texts, variants)
	if err != nil {
		if runRow != nil {
			finishFailed(runDB, runRow.ID, err, log)
		}
		return fatal(log, "run aborted", err)
	}

	if _, err := summary.WriteTo(os.Stdout); err != nil {
		log.Warn("failed to write summary", "error", err.Error())
	}

	if runRow != nil {
		finishCtx, cancelFinish := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancelFinish()
		if err := runDB.FinishRun(finishCtx, runRow.ID, ledger.Totals(summary)); err != nil {
			log.Warn("failed to record run totals", "error", err.Error())
		}
	}

	log.Info("run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"canceled", summary.Canceled,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	return 0
}

// fatal prints the cause to stderr and returns the exit status. Only
// configuration errors are expected here; anything else is still fatal.
func fatal(log *logger.Logger, msg string, err error) int {
	fmt.Fprintf(os.Stderr, "tessgen: %s: %v\n", msg, err)
	log.Error(msg, "error", err.Error(), "code", string(errors.GetCode(err)))
	return 1
}

func finishFailed(db *store.SQLiteStore, runID string, cause error, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.FinishRun(ctx, runID, models.RunTotals{
		Status:    models.RunFailed,
		ErrorText: cause.Error(),
	}); err != nil {
		log.Warn("failed to record run failure", "error", err.Error())
	}
}

func serveMetrics(addr string, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server failed", "error", err.Error())
		}
	}()
	return srv
}
