package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"voxelgen/internal/world"
)

var (
	// ErrQueueFull is returned by Submit when the job queue has no room.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrCancelled is the result of a job cancelled before it started.
	ErrCancelled = errors.New("jobs: cancelled before start")
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("jobs: pool shut down")
)

// Key names a unit of work.
type Key struct {
	Coord world.ChunkCoord
	Stage string
}

func (k Key) String() string {
	return k.Stage + k.Coord.String()
}

type task struct {
	key Key
	ctx context.Context
	run func(ctx context.Context)
	// skip completes the handle without running the job.
	skip func(err error)
}

// Pool runs submitted jobs on a fixed set of worker goroutines.
type Pool struct {
	queue   chan task
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines fed by a queue of queueSize jobs.
func NewPool(workers, queueSize int, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:   make(chan task, max(queueSize, 1)),
		workers: max(workers, 1),
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With("component", "jobs"),
	}
	for i := range p.workers {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		if t.ctx.Err() != nil || p.ctx.Err() != nil {
			p.log.Debug("job skipped", "job", t.key.String())
			t.skip(ErrCancelled)
			continue
		}
		t.run(t.ctx)
	}
	p.log.Debug("worker stopped", "worker", id)
}

// Handle tracks one submitted job.
type Handle[T any] struct {
	Key    Key
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

// Done reports whether the job has finished. It never blocks.
func (h *Handle[T]) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Finished returns a channel closed when the job completes.
func (h *Handle[T]) Finished() <-chan struct{} {
	return h.done
}

// Wait blocks until the job finishes and returns its result.
func (h *Handle[T]) Wait() (T, error) {
	<-h.done
	return h.value, h.err
}

// Take returns the result if the job has finished. ok is false while it is
// still queued or running.
func (h *Handle[T]) Take() (value T, ok bool, err error) {
	if !h.Done() {
		var zero T
		return zero, false, nil
	}
	return h.value, true, h.err
}

// Cancel asks the job not to start. A job that is already running sees its
// context cancelled but is otherwise left to finish.
func (h *Handle[T]) Cancel() {
	h.cancel()
}

// Submit queues fn without blocking. Panics inside fn are recovered and
// returned as the job's error.
func Submit[T any](p *Pool, key Key, fn func(ctx context.Context) (T, error)) (*Handle[T], error) {
	ctx, cancel := context.WithCancel(p.ctx)
	h := &Handle[T]{Key: key, done: make(chan struct{}), cancel: cancel}
	t := task{
		key: key,
		ctx: ctx,
		run: func(ctx context.Context) {
			defer close(h.done)
			defer cancel()
			defer func() {
				if r := recover(); r != nil {
					h.err = fmt.Errorf("jobs: %v panicked: %v", key, r)
					p.log.Error("job panicked", "job", key.String(), "panic", r)
				}
			}()
			h.value, h.err = fn(ctx)
		},
		skip: func(err error) {
			h.err = err
			cancel()
			close(h.done)
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		cancel()
		return nil, ErrClosed
	}
	select {
	case p.queue <- t:
		return h, nil
	default:
		cancel()
		return nil, ErrQueueFull
	}
}

// QueueLen returns the number of jobs waiting for a worker.
func (p *Pool) QueueLen() int {
	return len(p.queue)
}

// Shutdown stops accepting jobs, cancels those not yet started and waits
// for the workers to exit. Every handle is completed afterwards.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cancel()
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}
