// Package worker drains queue partitions into the confidence engine.
//
// Each partition is consumed by exactly one worker, so events of one zone are
// processed sequentially and in arrival order.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/zonetrust/internal/adapters/mq/queue"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Processor applies one intel event.
type Processor interface {
	Process(ctx context.Context, e Event) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, e Event) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, e Event) error { return f(ctx, e) } //nolint:gocritic // hugeParam: Event is passed by value for channel semantics

// Source is the part of the queue a worker reads from.
type Source interface {
	Dequeue(ctx context.Context, partition int) <-chan Event
	Partitions() int
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the partition closes.
	Run(ctx context.Context)
	// Shutdown stops the worker and waits for the in-flight event.
	Shutdown(ctx context.Context) error
}

// PartitionWorker consumes a single queue partition.
type PartitionWorker struct {
	source    Source
	partition int
	processor Processor
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewPartitionWorker creates a worker for one partition.
func NewPartitionWorker(source Source, partition int, processor Processor, opts ...Option) *PartitionWorker {
	w := &PartitionWorker{
		source:    source,
		partition: partition,
		processor: processor,
		name:      "worker-" + strconv.Itoa(partition),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run implements Worker.
func (w *PartitionWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.source.Dequeue(ctx, w.partition)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Shutdown implements Worker.
func (w *PartitionWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *PartitionWorker) Done() <-chan struct{} { return w.done }

func (w *PartitionWorker) process(ctx context.Context, e Event) { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	start := time.Now()
	err := w.processor.Process(ctx, e)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process")
		w.logger.Error(ctx, "processing intel failed",
			logger.String("submission_id", e.Submission.ID),
			logger.String("zone_id", e.Submission.ZoneID),
			logger.Error(err),
		)
	}
}

// Pool runs one PartitionWorker per queue partition.
type Pool struct {
	workers []*PartitionWorker
	source  Source
	logger  logger.Logger
}

// NewPool creates a worker for every partition of source.
func NewPool(source Source, processor Processor) *Pool {
	n := source.Partitions()
	p := &Pool{
		workers: make([]*PartitionWorker, n),
		source:  source,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < n; i++ {
		p.workers[i] = NewPartitionWorker(source, i, processor)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
	p.logger.Info(ctx, "workers started", logger.Int("count", len(p.workers)))
}

// Shutdown closes the queue if it can be closed, lets the workers drain
// their partitions and waits for them, bounded by ctx and poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
