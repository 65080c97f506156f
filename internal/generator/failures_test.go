package generator

import (
	"fmt"
	"sync"
	"testing"
)

func TestFailureCollectorKeepsFirstK(t *testing.T) {
	c := NewFailureCollector(5)

	for i := 0; i < 12; i++ {
		c.Observe(JobResult{Outcome: OutcomeFailure, Diagnostic: fmt.Sprintf("d%d", i)})
		c.Observe(JobResult{Outcome: OutcomeSuccess})
	}

	got := c.Samples()
	if len(got) != 5 {
		t.Fatalf("retained %d, want 5", len(got))
	}
	for i, d := range got {
		if d != fmt.Sprintf("d%d", i) {
			t.Errorf("sample %d = %q, want arrival order", i, d)
		}
	}
	if c.Dropped() != 7 {
		t.Errorf("dropped = %d, want 7", c.Dropped())
	}
}

func TestFailureCollectorZeroLimit(t *testing.T) {
	c := NewFailureCollector(0)
	if c.Observe(JobResult{Outcome: OutcomeFailure, Diagnostic: "x"}) {
		t.Error("zero limit must retain nothing")
	}
	if len(c.Samples()) != 0 {
		t.Error("expected empty samples")
	}
}

func TestFailureCollectorConcurrent(t *testing.T) {
	c := NewFailureCollector(5)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Observe(JobResult{Outcome: OutcomeFailure, Diagnostic: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	if n := len(c.Samples()); n != 5 {
		t.Errorf("retained %d, want 5", n)
	}
	if c.Dropped() != 59 {
		t.Errorf("dropped = %d, want 59", c.Dropped())
	}
}
