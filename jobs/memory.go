package jobs

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrDispatcherClosed     = errors.New("dispatcher closed")
	ErrDispatcherNotStarted = errors.New("dispatcher not started")
)

// MemoryDispatcher runs every job on its own goroutine as soon as it is
// enqueued. There is no queue bound.
type MemoryDispatcher struct {
	mu      sync.Mutex
	handler Handler
	closed  bool
	wg      sync.WaitGroup
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) Start(handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.handler = handler
	return nil
}

func (d *MemoryDispatcher) Enqueue(ctx context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if d.handler == nil {
		return ErrDispatcherNotStarted
	}

	// the job outlives the request that scheduled it
	jobCtx := context.WithoutCancel(ctx)
	handler := d.handler

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		run(jobCtx, handler, job)
	}()
	return nil
}

// Close stops accepting jobs and waits for running ones to finish.
func (d *MemoryDispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}
