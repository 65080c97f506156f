package generator

import "sync"

// FailureCollector keeps the diagnostics of the first failures it sees.
// Later failures are only counted.
type FailureCollector struct {
	mu      sync.Mutex
	limit   int
	samples []string
	dropped int
}

func NewFailureCollector(limit int) *FailureCollector {
	if limit < 0 {
		limit = 0
	}
	return &FailureCollector{limit: limit, samples: make([]string, 0, limit)}
}

// Observe records res if it failed and the sample is not full yet.
// It reports whether the diagnostic was retained.
func (c *FailureCollector) Observe(res JobResult) bool {
	if res.Succeeded() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.samples) >= c.limit {
		c.dropped++
		return false
	}
	c.samples = append(c.samples, res.Diagnostic)
	return true
}

// Samples returns a copy of the retained diagnostics in arrival order.
func (c *FailureCollector) Samples() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.samples))
	copy(out, c.samples)
	return out
}

// Dropped is the number of failures whose diagnostic was discarded.
func (c *FailureCollector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
