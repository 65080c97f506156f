package generator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"tessgen/internal/renderer"
)

// fakeRenderer records requests and writes a .tif for successful jobs.
type fakeRenderer struct {
	mu       sync.Mutex
	requests []renderer.Request
	staged   map[string]string

	fail   func(req renderer.Request) error
	panics bool
	block  chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{staged: map[string]string{}}
}

func (f *fakeRenderer) Render(ctx context.Context, req renderer.Request) error {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	content, err := os.ReadFile(req.TextFile)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if err == nil {
		f.staged[req.TextFile] = string(content)
	}
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.panics {
		panic("renderer exploded")
	}
	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return err
		}
	}
	return os.WriteFile(req.OutputBase+".tif", []byte("tif"), 0o644)
}

func (f *fakeRenderer) Requests() []renderer.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]renderer.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func alwaysFail(req renderer.Request) error {
	return fmt.Errorf("exit status 1")
}

// stubExecutor never touches the filesystem.
type stubExecutor struct {
	fn func(ctx context.Context, job Job) JobResult
}

func (s stubExecutor) Execute(ctx context.Context, job Job) JobResult {
	return s.fn(ctx, job)
}
