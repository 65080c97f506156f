package generator

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// RunSummary is the final account of one run. Only jobs that reached a
// terminal state are counted; Total-Completed jobs were never dispatched.
type RunSummary struct {
	Total       int
	Completed   int
	Succeeded   int
	Failed      int
	OutputDir   string
	Diagnostics []string
	Elapsed     time.Duration
	Canceled    bool
}

func (s *RunSummary) Skipped() int { return s.Total - s.Completed }

// WriteTo prints the human readable summary block.
func (s *RunSummary) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if len(s.Diagnostics) > 0 {
		b.WriteString("\nfirst failures:\n")
		for _, d := range s.Diagnostics {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	if s.Canceled {
		b.WriteString("\n=== canceled ===\n")
	} else {
		b.WriteString("\n=== done ===\n")
	}
	fmt.Fprintf(&b, "total: %d\n", s.Total)
	fmt.Fprintf(&b, "succeeded: %d\n", s.Succeeded)
	fmt.Fprintf(&b, "failed: %d\n", s.Failed)
	if s.Skipped() > 0 {
		fmt.Fprintf(&b, "skipped: %d\n", s.Skipped())
	}
	fmt.Fprintf(&b, "elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "output directory: %s\n", s.OutputDir)

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
