package starlark

import (
	"sync"

	"go.starlark.net/starlark"
)

// maxExecutionSteps bounds a single evaluation so a runaway comprehension
// in a template or row expression fails instead of hanging the run.
const maxExecutionSteps = 10_000_000

// threadPool recycles Starlark threads between evaluations. A derive
// expression is evaluated once per row, so reuse matters there.
type threadPool struct {
	mu      sync.Mutex
	threads []*starlark.Thread
	maxSize int
}

func newThreadPool(maxSize int) *threadPool {
	if maxSize <= 0 {
		maxSize = 4
	}
	return &threadPool{
		threads: make([]*starlark.Thread, 0, maxSize),
		maxSize: maxSize,
	}
}

// get returns an idle thread or a new one, named for error reporting.
func (p *threadPool) get(name string) *starlark.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.threads); n > 0 {
		thread := p.threads[n-1]
		p.threads = p.threads[:n-1]
		thread.Name = name
		// The step counter is cumulative, so the budget is moved forward.
		thread.SetMaxExecutionSteps(thread.ExecutionSteps() + maxExecutionSteps)
		return thread
	}

	thread := &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, _ string) {},
	}
	thread.SetMaxExecutionSteps(maxExecutionSteps)
	return thread
}

// put returns a thread after a successful evaluation. Threads that failed
// may have been cancelled and are never returned.
func (p *threadPool) put(thread *starlark.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.threads) >= p.maxSize {
		return
	}
	thread.Name = ""
	p.threads = append(p.threads, thread)
}

func (p *threadPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}
