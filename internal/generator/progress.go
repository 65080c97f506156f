package generator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"tessgen/internal/pkg/logger"
)

// ProgressSnapshot is a consistent view of the counters:
// Completed == Succeeded + Failed and Completed <= Total.
type ProgressSnapshot struct {
	Total     int
	Completed int
	Succeeded int
	Failed    int
	StartedAt time.Time
	Elapsed   time.Duration
	// Rate is completed jobs per second, 0 until time has passed.
	Rate float64
	// ETA is only meaningful when HasETA is set.
	ETA    time.Duration
	HasETA bool
}

func (s ProgressSnapshot) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) * 100 / float64(s.Total)
}

func (s ProgressSnapshot) Done() bool { return s.Completed == s.Total }

func (s ProgressSnapshot) String() string {
	eta := "-"
	if s.HasETA {
		eta = s.ETA.Round(time.Second).String()
	}
	return fmt.Sprintf("progress: %d/%d (%.1f%%) | ok: %d, failed: %d | rate: %.1f/s | eta: %s",
		s.Completed, s.Total, s.Percent(), s.Succeeded, s.Failed, s.Rate, eta)
}

// Reporter receives emitted snapshots. It runs under the tracker lock and
// must not call back into the tracker.
type Reporter func(ProgressSnapshot)

// LineReporter writes one line per snapshot to w.
func LineReporter(w io.Writer) Reporter {
	return func(s ProgressSnapshot) {
		fmt.Fprintln(w, s.String())
	}
}

// LogReporter records snapshots as structured log entries.
func LogReporter(log *logger.Logger) Reporter {
	return func(s ProgressSnapshot) {
		args := []any{
			"completed", s.Completed,
			"total", s.Total,
			"succeeded", s.Succeeded,
			"failed", s.Failed,
			"rate_per_s", s.Rate,
		}
		if s.HasETA {
			args = append(args, "eta_s", s.ETA.Seconds())
		}
		log.Info("progress", args...)
	}
}

// MultiReporter fans a snapshot out to every non-nil reporter.
func MultiReporter(reporters ...Reporter) Reporter {
	return func(s ProgressSnapshot) {
		for _, r := range reporters {
			if r != nil {
				r(s)
			}
		}
	}
}

// ProgressOptions configures a ProgressTracker. Zero values fall back to defaults.
type ProgressOptions struct {
	Batch    int
	Interval time.Duration
	Report   Reporter
	// Clock is time.Now unless overridden in tests.
	Clock func() time.Time
}

// ProgressTracker folds job results into counters and throttles reporting.
type ProgressTracker struct {
	mu sync.Mutex

	total     int
	completed int
	succeeded int
	failed    int

	startedAt  time.Time
	lastEmitAt time.Time

	batch    int
	interval time.Duration
	report   Reporter
	now      func() time.Time
}

func NewProgressTracker(total int, opts ProgressOptions) *ProgressTracker {
	if opts.Batch < 1 {
		opts.Batch = 50
	}
	if opts.Interval < 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	start := opts.Clock()
	return &ProgressTracker{
		total:      total,
		startedAt:  start,
		lastEmitAt: start,
		batch:      opts.Batch,
		interval:   opts.Interval,
		report:     opts.Report,
		now:        opts.Clock,
	}
}

// Observe counts one result and reports a snapshot when the completed count
// hits a batch multiple, reaches the total, or the interval has passed since
// the previous report. It reports at most once per call and returns the
// snapshot it reported.
func (t *ProgressTracker) Observe(res JobResult) (ProgressSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed >= t.total {
		return t.snapshotLocked(t.now()), false
	}

	t.completed++
	if res.Succeeded() {
		t.succeeded++
	} else {
		t.failed++
	}

	now := t.now()
	emit := t.completed%t.batch == 0 ||
		t.completed == t.total ||
		now.Sub(t.lastEmitAt) >= t.interval
	if !emit {
		return ProgressSnapshot{}, false
	}

	t.lastEmitAt = now
	snap := t.snapshotLocked(now)
	if t.report != nil {
		t.report(snap)
	}
	return snap, true
}

// Snapshot returns the current counters without reporting.
func (t *ProgressTracker) Snapshot() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(t.now())
}

func (t *ProgressTracker) snapshotLocked(now time.Time) ProgressSnapshot {
	s := ProgressSnapshot{
		Total:     t.total,
		Completed: t.completed,
		Succeeded: t.succeeded,
		Failed:    t.failed,
		StartedAt: t.startedAt,
		Elapsed:   now.Sub(t.startedAt),
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Rate = float64(s.Completed) / secs
	}
	if s.Rate > 0 {
		remaining := float64(s.Total-s.Completed) / s.Rate
		s.ETA = time.Duration(remaining * float64(time.Second))
		s.HasETA = true
	}
	return s
}
