// Package clicks records redirect clicks off the request path.
package clicks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/repository"
)

// Incrementer is the part of repository.Store the recorder needs.
type Incrementer interface {
	IncrementClicks(ctx context.Context, code string) error
}

// Recorder feeds click increments to a fixed pool of workers through a
// bounded queue. Record never blocks: when the queue is full the click is
// dropped. Increment failures are logged and dropped.
type Recorder struct {
	store   Incrementer
	jobs    chan string
	timeout time.Duration
	log     *logger.Logger
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	dropped  atomic.Int64
	failed   atomic.Int64
	recorded atomic.Int64
}

// Stats is a snapshot of recorder counters.
type Stats struct {
	Workers  int   `json:"workers"`
	Queued   int   `json:"queued"`
	Recorded int64 `json:"recorded"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

// New starts workers goroutines draining a queue of queueSize clicks.
// Each increment is bounded by timeout.
func New(store Incrementer, workers, queueSize int, timeout time.Duration, log *logger.Logger) *Recorder {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	r := &Recorder{
		store:   store,
		jobs:    make(chan string, queueSize),
		timeout: timeout,
		log:     log,
		workers: workers,
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker(i)
	}

	log.Info("Click recorder started", "workers", workers, "queue_size", queueSize)
	return r
}

// Record queues one click for code. It reports false when the click was
// dropped because the queue is full or the recorder is closed.
func (r *Recorder) Record(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.jobs <- code:
		return true
	default:
		r.dropped.Add(1)
		r.log.Warn("click queue full, dropping click", "short_code", code)
		return false
	}
}

// Close stops accepting clicks and waits for queued ones to be written,
// or for ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("Click recorder stopped", "recorded", r.recorded.Load(), "dropped", r.dropped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Workers:  r.workers,
		Queued:   len(r.jobs),
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

func (r *Recorder) worker(id int) {
	defer r.wg.Done()

	for code := range r.jobs {
		r.increment(id, code)
	}
}

func (r *Recorder) increment(id int, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.store.IncrementClicks(ctx, code)
	switch {
	case err == nil:
		r.recorded.Add(1)
	case errors.Is(err, repository.ErrNotFound):
		r.failed.Add(1)
		r.log.Warn("click for unknown short code", "worker", id, "short_code", code)
	default:
		r.failed.Add(1)
		r.log.Error("failed to record click",
			"op", "increment_clicks",
			"worker", id,
			"short_code", code,
			"error", err,
		)
	}
}
