package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

type Job any

type ProcessFunc func(ctx context.Context, job Job) error

// WorkerPool runs a fixed number of goroutines over a bounded job queue.
// A job that panics is logged and does not take its worker down.
type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	processor  ProcessFunc
	logger     *slog.Logger
	wg         sync.WaitGroup

	// done is closed by Stop to release blocked Submit calls; jobs is closed
	// only after every in-flight Submit has returned.
	done    chan struct{}
	senders sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewWorkerPool(numWorkers int, bufferSize int, processor ProcessFunc, logger *slog.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, bufferSize),
		processor:  processor,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.process(ctx, id, job)
		}
	}
}

func (wp *WorkerPool) process(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker job panicked", "worker", id, "panic", r)
		}
	}()

	if err := wp.processor(ctx, job); err != nil {
		wp.logger.Error("worker job failed", "worker", id, "error", err)
	}
}

// Submit blocks until the job is queued, ctx is done or the pool is stopped.
// The lock is not held while blocked, so Stop and TrySubmit never wait on it.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	wp.mu.RLock()
	if wp.closed {
		wp.mu.RUnlock()
		return ErrPoolClosed
	}
	wp.senders.Add(1)
	wp.mu.RUnlock()
	defer wp.senders.Done()

	select {
	case wp.jobs <- job:
		return nil
	case <-wp.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues the job without blocking and returns ErrQueueFull when
// the buffer has no room.
func (wp *WorkerPool) TrySubmit(job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}
	select {
	case wp.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop releases blocked submitters, closes the queue and waits for workers
// to drain it. Safe to call twice.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.done)
	wp.mu.Unlock()

	wp.senders.Wait()
	close(wp.jobs)
	wp.wg.Wait()
}
