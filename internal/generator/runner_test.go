package generator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tessgen/internal/config"
	"tessgen/internal/pkg/errors"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/renderer"
)

func testGeneratorConfig(t *testing.T, workers int) config.Generator {
	t.Helper()
	return config.Generator{
		WorkerCount:        workers,
		ProgressBatch:      50,
		ProgressInterval:   3 * time.Second,
		FailureSampleLimit: 5,
		OutputDir:          filepath.Join(t.TempDir(), "out"),
		ModelName:          "jpn_custom",
		StagingDir:         filepath.Join(t.TempDir(), "staging"),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunTwoTextsOneFont(t *testing.T) {
	cfg := testGeneratorConfig(t, 1)
	var lines bytes.Buffer
	runner := NewRunner(Options{
		Config:   cfg,
		Renderer: newFakeRenderer(),
		Log:      logger.Discard(),
		Report:   LineReporter(&lines),
	})

	summary, err := runner.Run(context.Background(), []string{"A", "B"}, []string{"F1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Total != 2 || summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	want := []string{"jpn_custom.train_0000.tif", "jpn_custom.train_0001.tif"}
	if got := listDir(t, cfg.OutputDir); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("artifacts = %v, want %v", got, want)
	}
	if got := listDir(t, cfg.StagingDir); len(got) != 0 {
		t.Errorf("staging files leaked: %v", got)
	}
	if n := strings.Count(lines.String(), "progress: 2/2"); n != 1 {
		t.Errorf("expected exactly one final progress line, got %d in %q", n, lines.String())
	}
}

func TestRunEmptyCorpusIsConfigurationError(t *testing.T) {
	cfg := testGeneratorConfig(t, 2)
	rc := newFakeRenderer()
	runner := NewRunner(Options{Config: cfg, Renderer: rc, Log: logger.Discard()})

	summary, err := runner.Run(context.Background(), nil, []string{"F1"})

	if !errors.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if summary != nil {
		t.Errorf("expected no summary, got %+v", summary)
	}
	if len(rc.Requests()) != 0 {
		t.Error("no job may be dispatched")
	}
	if _, err := os.Stat(cfg.OutputDir); !os.IsNotExist(err) {
		t.Error("output directory must not be created for a rejected run")
	}
}

func TestRunAllInvocationsFail(t *testing.T) {
	tests := []struct {
		texts, fonts, limit int
	}{
		{2, 1, 5},
		{4, 3, 5},
		{3, 3, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d-limit%d", tt.texts, tt.fonts, tt.limit), func(t *testing.T) {
			cfg := testGeneratorConfig(t, 4)
			cfg.FailureSampleLimit = tt.limit
			rc := newFakeRenderer()
			rc.fail = alwaysFail

			summary, err := NewRunner(Options{Config: cfg, Renderer: rc, Log: logger.Discard()}).
				Run(context.Background(), makeStrings("t", tt.texts), makeStrings("f", tt.fonts))
			if err != nil {
				t.Fatalf("job failures must not fail the run: %v", err)
			}

			total := tt.texts * tt.fonts
			if summary.Succeeded != 0 || summary.Failed != total || summary.Completed != total {
				t.Errorf("summary = %+v", summary)
			}
			if want := min(total, tt.limit); len(summary.Diagnostics) != want {
				t.Errorf("diagnostics = %d, want %d", len(summary.Diagnostics), want)
			}
			if got := listDir(t, cfg.StagingDir); len(got) != 0 {
				t.Errorf("staging files leaked: %v", got)
			}
		})
	}
}

func TestRunZeroWorkersStillCompletes(t *testing.T) {
	cfg := testGeneratorConfig(t, 0)
	runner := NewRunner(Options{Config: cfg, Renderer: newFakeRenderer(), Log: logger.Discard()})
	if runner.Workers() != 1 {
		t.Fatalf("workers = %d, want 1", runner.Workers())
	}

	summary, err := runner.Run(context.Background(), []string{"A", "B", "C"}, []string{"F1", "F2"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Completed != 6 || summary.Succeeded != 6 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunMixedOutcomesInvariant(t *testing.T) {
	cfg := testGeneratorConfig(t, 8)
	cfg.ProgressBatch = 7
	rc := newFakeRenderer()
	rc.fail = func(req renderer.Request) error {
		if strings.Contains(req.Font, "bad") {
			return fmt.Errorf("font not found")
		}
		return nil
	}

	var mu sync.Mutex
	var snaps []ProgressSnapshot
	runner := NewRunner(Options{
		Config:   cfg,
		Renderer: rc,
		Log:      logger.Discard(),
		Report: func(s ProgressSnapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		},
	})

	summary, err := runner.Run(context.Background(), makeStrings("text", 30), []string{"good1", "bad", "good2"})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Succeeded != 60 || summary.Failed != 30 {
		t.Errorf("summary = %+v", summary)
	}
	for _, s := range snaps {
		if s.Completed != s.Succeeded+s.Failed || s.Completed > s.Total {
			t.Errorf("invariant broken in %+v", s)
		}
	}
	if last := snaps[len(snaps)-1]; !last.Done() {
		t.Errorf("last emission should be final, got %+v", last)
	}
	for _, d := range summary.Diagnostics {
		if !strings.Contains(d, "Font: bad") {
			t.Errorf("unexpected diagnostic %q", d)
		}
	}
	if peak := rc.maxActive.Load(); peak > 8 {
		t.Errorf("peak concurrency %d exceeds 8 workers", peak)
	}
}

type collectingSink struct {
	mu      sync.Mutex
	indices []uint
}

func (s *collectingSink) Accept(ctx context.Context, res JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices = append(s.indices, res.Job.Index)
	if res.Job.Index == 0 {
		return fmt.Errorf("sink unavailable")
	}
	return nil
}

func TestRunFeedsSink(t *testing.T) {
	cfg := testGeneratorConfig(t, 2)
	sink := &collectingSink{}
	summary, err := NewRunner(Options{Config: cfg, Renderer: newFakeRenderer(), Log: logger.Discard(), Sink: sink}).
		Run(context.Background(), []string{"A", "B"}, []string{"F1", "F2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.indices) != 4 {
		t.Errorf("sink saw %d results, want 4", len(sink.indices))
	}
	if summary.Succeeded != 4 {
		t.Errorf("sink errors must not change outcomes: %+v", summary)
	}
}

func TestRunCanceledMidway(t *testing.T) {
	cfg := testGeneratorConfig(t, 2)
	rc := newFakeRenderer()
	rc.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	summary, err := NewRunner(Options{Config: cfg, Renderer: rc, Log: logger.Discard()}).
		Run(ctx, makeStrings("t", 10), []string{"F1"})
	if err != nil {
		t.Fatal(err)
	}

	if !summary.Canceled {
		t.Error("expected canceled summary")
	}
	if summary.Completed != summary.Succeeded+summary.Failed {
		t.Errorf("inconsistent summary %+v", summary)
	}
	if summary.Completed > 3 {
		t.Errorf("completed = %d, want only the in-flight jobs (<= workers + 1)", summary.Completed)
	}
	if summary.Skipped() != summary.Total-summary.Completed {
		t.Errorf("skipped = %d", summary.Skipped())
	}
	if got := listDir(t, cfg.StagingDir); len(got) != 0 {
		t.Errorf("staging files leaked: %v", got)
	}
}

func TestSummaryWriteTo(t *testing.T) {
	s := &RunSummary{
		Total: 10, Completed: 10, Succeeded: 8, Failed: 2,
		OutputDir:   "/workspace/data",
		Diagnostics: []string{"Text: A..., Font: F1, Error: x"},
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"first failures:", "  - Text: A..., Font: F1, Error: x", "succeeded: 8", "failed: 2", "output directory: /workspace/data"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("complete run should not print skipped:\n%s", out)
	}
}
