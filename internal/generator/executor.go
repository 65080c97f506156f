package generator

import (
	"context"
	"fmt"
	"os"
	"time"

	"tessgen/internal/pkg/errors"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/renderer"
)

// diagnosticTextRunes is how much of a failed job's text ends up in its diagnostic.
const diagnosticTextRunes = 30

// Executor turns one Job into one JobResult. Implementations must not panic
// and must not return without a result.
type Executor interface {
	Execute(ctx context.Context, job Job) JobResult
}

// JobExecutor stages the job text in a temporary file and renders it.
type JobExecutor struct {
	renderer   renderer.Client
	naming     Naming
	stagingDir string
	log        *logger.Logger
}

func NewJobExecutor(rc renderer.Client, naming Naming, stagingDir string, log *logger.Logger) *JobExecutor {
	if log == nil {
		log = logger.NewDefault()
	}
	return &JobExecutor{
		renderer:   rc,
		naming:     naming,
		stagingDir: stagingDir,
		log:        log.WithComponent("executor"),
	}
}

func (e *JobExecutor) Execute(ctx context.Context, job Job) (res JobResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = failedResult(job, errors.Newf(errors.CodeInternal, "panic during render: %v", rec))
		}
		res.Artifact = e.naming.BaseName(job.Index)
		res.Duration = time.Since(start)
	}()

	textFile, release, err := e.stage(job.Text)
	if err != nil {
		return failedResult(job, err)
	}
	defer func() {
		if err := release(); err != nil {
			// Never flips the outcome.
			e.log.Warn("staging cleanup failed",
				"job", job.Index,
				"code", string(errors.GetCode(err)),
				"error", err.Error(),
			)
		}
	}()

	err = e.renderer.Render(ctx, renderer.Request{
		TextFile:   textFile,
		Text:       job.Text,
		Font:       job.Variant,
		OutputBase: e.naming.Base(job.Index),
	})
	if err != nil {
		return failedResult(job, err)
	}
	return JobResult{Job: job, Outcome: OutcomeSuccess}
}

// stage writes text to a fresh temporary file. release removes it and is
// safe to call once on every path.
func (e *JobExecutor) stage(text string) (path string, release func() error, err error) {
	f, err := os.CreateTemp(e.stagingDir, "tessgen-*.txt")
	if err != nil {
		return "", nil, errors.Wrap(err, "executor.stage", "create staging file")
	}
	path = f.Name()
	release = func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Cleanup(err, path)
		}
		return nil
	}

	_, werr := f.WriteString(text)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		if rerr := release(); rerr != nil {
			e.log.Warn("staging cleanup failed", "error", rerr.Error())
		}
		return "", nil, errors.Wrap(werr, "executor.stage", "write staging file")
	}
	return path, release, nil
}

func failedResult(job Job, err error) JobResult {
	return JobResult{
		Job:        job,
		Outcome:    OutcomeFailure,
		Diagnostic: Diagnostic(job, err),
	}
}

// Diagnostic formats a failure as "Text: <prefix>..., Font: <variant>, Error: <detail>".
func Diagnostic(job Job, err error) string {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return fmt.Sprintf("Text: %s..., Font: %s, Error: %s", truncateRunes(job.Text, diagnosticTextRunes), job.Variant, detail)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
