// Package dedupe tracks submission ids so redelivered intel is applied once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultMaxSize bounds memory when no size is configured.
const DefaultMaxSize = 50000

// Deduper records seen submission IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be retried. Used when a submission was
	// recorded but could not be enqueued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// ringDeduper keeps the most recent maxSize ids in a ring. The oldest id is
// overwritten first. With maxSize <= 0 it degrades to an unbounded set.
type ringDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> ring slot, -1 in unbounded mode
	ring    []string
	used    []bool
	next    int
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
		d.used = make([]bool, d.maxSize)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize <= 0 {
		d.seen[id] = -1
		d.size.Add(1)
		return false
	}

	slot := d.next
	if d.used[slot] {
		delete(d.seen, d.ring[slot])
		d.size.Add(-1)
	}
	d.ring[slot] = id
	d.used[slot] = true
	d.seen[id] = slot
	d.next = (slot + 1) % d.maxSize
	d.size.Add(1)
	return false
}

// Unrecord implements Deduper.
func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if slot >= 0 {
		d.ring[slot] = ""
		d.used[slot] = false
	}
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *ringDeduper) Size() int64 {
	return d.size.Load()
}
