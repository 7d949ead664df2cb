package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/airsense/internal/adapters/mq/publisher"
	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
	"github.com/okian/airsense/pkg/metrics"
)

const defaultBuffer = 4

// InMemoryWorker publishes snapshots from a small buffer. When the buffer is
// full the oldest snapshot is dropped; only the latest reading matters.
type InMemoryWorker struct {
	sink   publisher.Publisher
	name   string
	buffer int

	mu      sync.Mutex
	pending chan types.Snapshot
	dropped int
	sent    int
	failed  int

	once     sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker publishing to sink.
func NewInMemoryWorker(sink publisher.Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		sink:     sink,
		name:     "worker",
		buffer:   defaultBuffer,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	w.pending = make(chan types.Snapshot, w.buffer)
	return w
}

// Offer queues s for publishing without blocking.
func (w *InMemoryWorker) Offer(s types.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		select {
		case w.pending <- s:
			return
		default:
		}
		select {
		case <-w.pending:
			w.dropped++
		default:
		}
	}
}

// Run publishes until ctx is done or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx)
			return
		case s := <-w.pending:
			w.publish(ctx, s)
		}
	}
}

func (w *InMemoryWorker) drain(ctx context.Context) {
	for {
		select {
		case s := <-w.pending:
			w.publish(ctx, s)
		default:
			return
		}
	}
}

func (w *InMemoryWorker) publish(ctx context.Context, s types.Snapshot) {
	err := w.sink.Publish(ctx, s)
	metrics.RecordPublish(err != nil)

	w.mu.Lock()
	if err != nil {
		w.failed++
	} else {
		w.sent++
	}
	first := err != nil && w.failed == 1
	w.mu.Unlock()

	if err == nil {
		return
	}
	metrics.RecordErrorByComponent("publisher", "publish")
	if first {
		w.logger.Warn(ctx, "publish failed", logger.Error(err))
	} else {
		w.logger.Debug(ctx, "publish failed", logger.Error(err))
	}
}

// Shutdown flushes pending snapshots and stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats reports sent, failed and dropped snapshot counts.
func (w *InMemoryWorker) Stats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]interface{}{
		"sent":    w.sent,
		"failed":  w.failed,
		"dropped": w.dropped,
		"pending": len(w.pending),
	}
}
