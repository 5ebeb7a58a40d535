package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingRunner struct {
	release chan struct{}
	mu      sync.Mutex
	done    []string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Dispatch(_ context.Context, job Job) Outcome {
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, job.OrderID)
	return Outcome{OrderID: job.OrderID}
}

func (r *blockingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.done)
}

func TestNewQueue_RejectsBadSizes(t *testing.T) {
	_, err := NewQueue(newBlockingRunner(), 0, 1, nil)
	assert.Error(t, err)
	_, err = NewQueue(newBlockingRunner(), 1, 0, nil)
	assert.Error(t, err)
}

func TestQueue_RunsJobsAndDrainsOnShutdown(t *testing.T) {
	runner := newBlockingRunner()
	q, err := NewQueue(runner, 8, 2, zap.NewNop())
	require.NoError(t, err)
	q.Start()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{OrderID: id}))
	}
	close(runner.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	assert.Equal(t, 3, runner.count())
	stats := q.Stats()
	assert.Equal(t, uint64(3), stats.Processed)
	assert.Equal(t, int64(0), stats.InFlight)
}

func TestQueue_FullIsReportedNotBlocking(t *testing.T) {
	runner := newBlockingRunner()
	q, err := NewQueue(runner, 1, 1, zap.NewNop())
	require.NoError(t, err)
	// not started: the buffer fills without being drained
	require.NoError(t, q.Enqueue(context.Background(), Job{OrderID: "a"}))

	err = q.Enqueue(context.Background(), Job{OrderID: "b"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), q.Stats().Rejected)
	assert.Equal(t, 1, q.Stats().Pending)

	close(runner.release)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueue_EnqueueAfterShutdown(t *testing.T) {
	q, err := NewQueue(newBlockingRunner(), 4, 1, zap.NewNop())
	require.NoError(t, err)
	q.Start()
	require.NoError(t, q.Shutdown(context.Background()))

	err = q.Enqueue(context.Background(), Job{OrderID: "late"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_ShutdownHonoursDeadline(t *testing.T) {
	runner := newBlockingRunner()
	q, err := NewQueue(runner, 4, 1, zap.NewNop())
	require.NoError(t, err)
	q.Start()
	require.NoError(t, q.Enqueue(context.Background(), Job{OrderID: "stuck"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = q.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(runner.release)
}

func TestQueue_ShutdownRunsJobsBufferedBeforeStart(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	q, err := NewQueue(runner, 4, 1, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), Job{OrderID: "a"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{OrderID: "b"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	assert.Equal(t, 2, runner.count())
	assert.Equal(t, uint64(2), q.Stats().Processed)
}
