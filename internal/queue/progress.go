package queue

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tessgen/internal/generator"
	"tessgen/internal/pkg/logger"
)

const (
	progressKeyPrefix = "tessgen:progress:"
	// progressTTL keeps finished runs readable for a while without leaking keys.
	progressTTL = 24 * time.Hour
	publishWait = 2 * time.Second
)

// Progress is the live view of a running job as stored in Redis.
type Progress struct {
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Percent    float64   `json:"percent"`
	RatePerSec float64   `json:"rate_per_sec"`
	ETASeconds *float64  `json:"eta_seconds,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProgressPublisher mirrors progress snapshots into one Redis hash per run.
type ProgressPublisher struct {
	rdb *redis.Client
	log *logger.Logger
	now func() time.Time
}

func NewProgressPublisher(rdb *redis.Client, log *logger.Logger) *ProgressPublisher {
	if log == nil {
		log = logger.NewDefault()
	}
	return &ProgressPublisher{rdb: rdb, log: log.WithComponent("progress"), now: time.Now}
}

func ProgressKey(runID string) string { return progressKeyPrefix + runID }

// Publish stores snap for runID.
func (p *ProgressPublisher) Publish(ctx context.Context, runID string, snap generator.ProgressSnapshot) error {
	key := ProgressKey(runID)
	pipe := p.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, progressFields(snap, p.now()))
	pipe.Expire(ctx, key, progressTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Reporter adapts Publish to a generator.Reporter. Publish errors are
// logged; a slow or missing Redis never stalls the run for long.
func (p *ProgressPublisher) Reporter(ctx context.Context, runID string) generator.Reporter {
	log := p.log.WithRunID(runID)
	return func(s generator.ProgressSnapshot) {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishWait)
		defer cancel()
		if err := p.Publish(pubCtx, runID, s); err != nil {
			log.Warn("progress publish failed", "error", err.Error())
		}
	}
}

// Fetch returns the last published progress of runID. ok is false when
// nothing was published yet or the entry expired.
func (p *ProgressPublisher) Fetch(ctx context.Context, runID string) (Progress, bool, error) {
	fields, err := p.rdb.HGetAll(ctx, ProgressKey(runID)).Result()
	if stderrors.Is(err, redis.Nil) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, err
	}
	if len(fields) == 0 {
		return Progress{}, false, nil
	}
	return parseProgress(fields), true, nil
}

func progressFields(s generator.ProgressSnapshot, now time.Time) map[string]any {
	fields := map[string]any{
		"total":      s.Total,
		"completed":  s.Completed,
		"succeeded":  s.Succeeded,
		"failed":     s.Failed,
		"percent":    strconv.FormatFloat(s.Percent(), 'f', 2, 64),
		"rate":       strconv.FormatFloat(s.Rate, 'f', 3, 64),
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	if s.HasETA {
		fields["eta_seconds"] = strconv.FormatFloat(s.ETA.Seconds(), 'f', 1, 64)
	}
	return fields
}

func parseProgress(f map[string]string) Progress {
	p := Progress{
		Total:      atoi(f["total"]),
		Completed:  atoi(f["completed"]),
		Succeeded:  atoi(f["succeeded"]),
		Failed:     atoi(f["failed"]),
		Percent:    atof(f["percent"]),
		RatePerSec: atof(f["rate"]),
	}
	if v, ok := f["eta_seconds"]; ok {
		eta := atof(v)
		p.ETASeconds = &eta
	}
	if t, err := time.Parse(time.RFC3339Nano, f["updated_at"]); err == nil {
		p.UpdatedAt = t
	}
	return p
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
