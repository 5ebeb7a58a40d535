package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no room left.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrQueueClosed is returned by Enqueue after Shutdown started.
	ErrQueueClosed = errors.New("dispatch queue is closed")
)

// Runner executes a single job.
type Runner interface {
	Dispatch(ctx context.Context, job Job) Outcome
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Capacity  int    `json:"capacity"`
	Workers   int    `json:"workers"`
	Pending   int    `json:"pending"`
	InFlight  int64  `json:"in_flight"`
	Processed uint64 `json:"processed"`
	Rejected  uint64 `json:"rejected"`
}

// Queue is a bounded in-process job queue drained by an ants worker pool.
type Queue struct {
	runner Runner
	jobs   chan Job
	pool   *ants.Pool
	log    *zap.Logger

	// base is the context jobs run under; request contexts end with the response.
	base context.Context

	mu       sync.RWMutex
	closed   bool
	started  bool
	loopDone chan struct{}
	running  sync.WaitGroup

	inFlight  atomic.Int64
	processed atomic.Uint64
	rejected  atomic.Uint64
}

// NewQueue returns a Queue holding up to size jobs, run by workers goroutines.
func NewQueue(runner Runner, size, workers int, log *zap.Logger) (*Queue, error) {
	if size <= 0 || workers <= 0 {
		return nil, fmt.Errorf("queue size and workers must be positive, got %d and %d", size, workers)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("queue")

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		log.Error("dispatch worker panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Queue{
		runner:   runner,
		jobs:     make(chan Job, size),
		pool:     pool,
		log:      log,
		base:     context.Background(),
		loopDone: make(chan struct{}),
	}, nil
}

// Start launches the consumer loop. It is a no-op on a started queue.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	go q.loop()
}

// Enqueue schedules job without blocking.
func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.rejected.Add(1)
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		q.rejected.Add(1)
		return ErrQueueFull
	}
}

func (q *Queue) loop() {
	defer close(q.loopDone)
	for job := range q.jobs {
		q.running.Add(1)
		q.inFlight.Add(1)
		// Submit blocks while every worker is busy, which leaves the backlog in q.jobs.
		err := q.pool.Submit(func() {
			defer func() {
				q.inFlight.Add(-1)
				q.processed.Add(1)
				q.running.Done()
			}()
			q.runner.Dispatch(q.base, job)
		})
		if err != nil {
			q.inFlight.Add(-1)
			q.running.Done()
			q.log.Error("submit dispatch job", zap.String("order_id", job.OrderID), zap.Error(err))
		}
	}
}

// Shutdown stops intake and waits for queued and in-flight jobs until ctx
// expires. Jobs buffered on a queue that was never started are run as well.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	if !q.started {
		q.started = true
		if n := len(q.jobs); n > 0 {
			q.log.Info("draining jobs enqueued before start", zap.Int("jobs", n))
		}
		go q.loop()
	}
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-q.loopDone
		q.running.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		q.pool.Release()
		q.log.Info("dispatch queue drained", zap.Uint64("processed", q.processed.Load()))
		return nil
	case <-ctx.Done():
		_ = q.pool.ReleaseTimeout(time.Second)
		return fmt.Errorf("drain dispatch queue: %w", ctx.Err())
	}
}

// Stats reports queue occupancy.
func (q *Queue) Stats() Stats {
	return Stats{
		Capacity:  cap(q.jobs),
		Workers:   q.pool.Cap(),
		Pending:   len(q.jobs),
		InFlight:  q.inFlight.Load(),
		Processed: q.processed.Load(),
		Rejected:  q.rejected.Load(),
	}
}
