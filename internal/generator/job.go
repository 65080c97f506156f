// Package generator renders a text corpus in every font variant with a
// bounded pool of text2image invocations and reports progress as it goes.
//
// The flow of one run is Enumerate -> Pool.Dispatch -> JobExecutor.Execute,
// with every JobResult folded by a single loop in Runner into the
// ProgressTracker and the FailureCollector.
package generator

import (
	"time"

	"tessgen/internal/pkg/errors"
)

// Job pairs one text with one variant. Index is assigned by Enumerate and is
// the only identity used for artifact names.
type Job struct {
	Index   uint
	Text    string
	Variant string
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// JobResult is the terminal state of exactly one Job.
type JobResult struct {
	Job        Job
	Outcome    Outcome
	Artifact   string // base name, set on every outcome
	Diagnostic string
	Duration   time.Duration
}

func (r JobResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// Enumerate builds corpus x variants with the corpus as the outer loop.
// Indices are contiguous from 0, so equal inputs always yield equal jobs.
func Enumerate(corpus, variants []string) ([]Job, error) {
	if len(corpus) == 0 {
		return nil, errors.Configuration("generator.enumerate", "corpus is empty")
	}
	if len(variants) == 0 {
		return nil, errors.Configuration("generator.enumerate", "variant list is empty")
	}

	jobs := make([]Job, 0, len(corpus)*len(variants))
	for _, text := range corpus {
		for _, variant := range variants {
			jobs = append(jobs, Job{
				Index:   uint(len(jobs)),
				Text:    text,
				Variant: variant,
			})
		}
	}
	return jobs, nil
}
