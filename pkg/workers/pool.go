// Package workers provides the shared, unbounded worker pool handed to
// connector populators and used to dispatch received datagrams.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/hostkit/internal/logger"
	"golang.org/x/sync/errgroup"
)

// ErrPoolShutdown is returned by Submit once Shutdown has been called.
var ErrPoolShutdown = errors.New("worker pool is shut down")

// Task is a unit of work. The context is canceled when the pool shuts down.
type Task func(ctx context.Context) error

// Pool runs every submitted task on its own goroutine. There is no upper
// bound on concurrency; callers needing one should bound their own fan-out.
type Pool struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.RWMutex
	closed bool

	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates a pool. name appears in log lines.
func New(name string) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Submit schedules task. Task errors and panics are logged, never returned.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolShutdown
	}

	p.group.Go(func() error {
		if err := p.run(task); err != nil {
			logger.Warn("Worker task failed", logger.KeyComponent, p.name, logger.KeyError, err)
		}
		return nil
	})
	return nil
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(p.ctx)
}

// Shutdown rejects further submissions, cancels the task context and waits
// for running tasks until ctx expires. It is safe to call more than once;
// later calls wait the same way.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.cancel()
		go func() {
			_ = p.group.Wait()
			close(p.done)
		}()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool %s: tasks still running: %w", p.name, ctx.Err())
	}
}

// IsShutdown reports whether Shutdown has been called.
func (p *Pool) IsShutdown() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
