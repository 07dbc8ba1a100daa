// Package queue defines the contract for enqueuing and consuming intel events.
//
// The in-memory implementation is split into partitions. All events of a zone
// land in the same partition, so a single consumer per partition gives one
// update in flight per zone.
package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultPartitions        = 8
	defaultPartitionCapacity = 4096
)

// Event is the payload flowing through the queue.
type Event = model.IntelEvent

// Queue provides non-blocking enqueue and per-partition channel dequeue.
type Queue interface {
	// Enqueue routes e to its zone's partition. It never blocks: a full
	// partition returns ErrFull.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns the channel of one partition. The channel is closed
	// when the queue is closed and drained, or ctx is done.
	Dequeue(ctx context.Context, partition int) <-chan Event

	// Partitions returns the number of partitions.
	Partitions() int

	// Len returns the number of queued events across partitions.
	Len(ctx context.Context) int

	// Close stops accepting events. Consumers drain what is left.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// PartitionFor maps a zone id onto one of n partitions.
func PartitionFor(zoneID string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(zoneID) % uint64(n))
}

// InMemoryQueue implements Queue with one buffered channel per partition.
type InMemoryQueue struct {
	partitions []chan Event
	count      int
	capacity   int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		count:    defaultPartitions,
		capacity: defaultPartitionCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.partitions = make([]chan Event, q.count)
	for i := range q.partitions {
		q.partitions[i] = make(chan Event, q.capacity)
		metrics.UpdateQueueSize(strconv.Itoa(i), 0)
	}
	metrics.UpdateQueueCapacity(q.capacity)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return err
	}

	p := PartitionFor(e.Submission.ZoneID, q.count)
	select {
	case q.partitions[p] <- e:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(strconv.Itoa(p), len(q.partitions[p]))
		return nil
	default:
		metrics.RecordQueueRejected("full")
		return ErrFull
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context, partition int) <-chan Event {
	out := make(chan Event)
	if partition < 0 || partition >= q.count {
		close(out)
		return out
	}
	src := q.partitions[partition]
	label := strconv.Itoa(partition)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-src:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(label, len(src))
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Partitions implements Queue.
func (q *InMemoryQueue) Partitions() int { return q.count }

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	n := 0
	for _, p := range q.partitions {
		n += len(p)
	}
	return n
}

// Drain blocks until every partition is empty or ctx is done. Events already
// handed to a consumer are not tracked.
func (q *InMemoryQueue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for q.Len(ctx) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close implements Queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	for _, p := range q.partitions {
		close(p)
	}
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
