// Package queue carries operator commands from the control surfaces (HTTP,
// buttons) to the single sampling loop.
//
// Producers never block: a full or closed queue rejects the command and the
// caller reports backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/pkg/metrics"
)

const defaultCapacity = 16

// Command is the payload flowing through the queue.
type Command = model.Command

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a command. Returns false if it was not accepted.
	Enqueue(ctx context.Context, c Command) bool

	// Dequeue returns a channel of commands. It is closed when the queue is
	// closed and drained, or when ctx is done.
	Dequeue(ctx context.Context) <-chan Command

	// Len returns the number of pending commands.
	Len(ctx context.Context) int

	// Close stops accepting commands.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commands chan Command
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Command, q.capacity)
	metrics.UpdateCommandQueueSize(0)
	return q
}

// Capacity returns the queue bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a command to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) bool {
	return q.Push(ctx, c) == nil
}

// Push is Enqueue with the rejection reason: ErrClosed, ErrFull or the
// context error.
func (q *InMemoryQueue) Push(ctx context.Context, c Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	kind := c.Kind.String()
	if q.closed {
		metrics.RecordCommandDropped(kind, "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordCommandDropped(kind, "context_cancelled")
		return err
	}

	select {
	case q.commands <- c:
		metrics.UpdateCommandQueueSize(len(q.commands))
		return nil
	default:
		metrics.RecordCommandDropped(kind, "full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives commands as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		for {
			select {
			case c, ok := <-q.commands:
				if !ok {
					return
				}
				metrics.UpdateCommandQueueSize(len(q.commands))
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued commands.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.commands)
}

// Close stops the queue. Pending commands are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
