// Package service wires the confidence engine, the ranker and their adapters
// into the application that the HTTP API and the Kafka consumer drive.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/zonetrust/internal/adapters/mq/queue"
	"github.com/okian/zonetrust/internal/adapters/mq/worker"
	"github.com/okian/zonetrust/internal/adapters/repository"
	"github.com/okian/zonetrust/internal/domain/confidence"
	"github.com/okian/zonetrust/internal/domain/dedupe"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/pricing"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultPartitions         = 8
	defaultQueueSize          = 4096
	defaultDedupeSize         = dedupe.DefaultMaxSize
	defaultSweepConcurrency   = 16
	defaultMaxRecommendations = 50
	defaultLockStripes        = 256
	defaultStopTimeout        = 30 * time.Second

	// maxClockSkew is how far in the future a report may be dated.
	maxClockSkew = 5 * time.Minute
)

// UpdatePublisher receives every committed confidence update.
type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, s model.ZoneConfidenceState, e model.AuditEntry) error
}

// Service implements the zone trust application.
//
// Intel is accepted by Submit, queued on the zone's partition and applied by
// that partition's worker through Process. Ticks and sweeps take the same
// per-zone lock, so a zone never has two updates in flight.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	engine    *confidence.Engine
	ranker    *ranking.Ranker
	baseline  *pricing.Baseline
	weather   *weather.Cache
	publisher UpdatePublisher
	locks     *stripedLock
	clock     func() time.Time

	// Configuration
	partitions         int
	queueSize          int
	dedupeSize         int
	sweepInterval      time.Duration
	sweepConcurrency   int
	maxRecommendations int

	// State
	started bool
	stopped bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup

	received   atomic.Uint64
	accepted   atomic.Uint64
	duplicates atomic.Uint64
	rejected   atomic.Uint64
	processed  atomic.Uint64
	failed     atomic.Uint64
	lastSweep  atomic.Pointer[SweepReport]

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPartitions sets the number of queue partitions and workers.
func WithPartitions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.partitions = n
		}
	}
}

// WithQueueSize sets the capacity of each queue partition.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithEngine sets the confidence engine.
func WithEngine(e *confidence.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithRanker sets the zone ranker.
func WithRanker(r *ranking.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithPriceBaseline sets the price anomaly detector.
func WithPriceBaseline(b *pricing.Baseline) Option {
	return func(s *Service) {
		if b != nil {
			s.baseline = b
		}
	}
}

// WithWeatherCache sets the weather cache.
func WithWeatherCache(c *weather.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.weather = c
		}
	}
}

// WithPublisher publishes every confidence update.
func WithPublisher(p UpdatePublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithSweepInterval runs Sweep periodically once started. Zero disables it.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sweepInterval = d
		}
	}
}

// WithSweepConcurrency bounds how many zones a sweep ticks at once.
func WithSweepConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepConcurrency = n
		}
	}
}

// WithMaxRecommendations caps the number of recommendations per request.
func WithMaxRecommendations(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecommendations = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Components not supplied by options get in-memory
// defaults.
func New(opts ...Option) *Service {
	s := &Service{
		partitions:         defaultPartitions,
		queueSize:          defaultQueueSize,
		dedupeSize:         defaultDedupeSize,
		sweepConcurrency:   defaultSweepConcurrency,
		maxRecommendations: defaultMaxRecommendations,
		clock:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.engine == nil {
		s.engine = confidence.NewEngine()
	}
	if s.ranker == nil {
		s.ranker = ranking.NewRanker()
	}
	if s.baseline == nil {
		s.baseline = pricing.NewBaseline()
	}
	if s.weather == nil {
		s.weather = weather.NewCache()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(
		queue.WithPartitions(s.partitions),
		queue.WithCapacity(s.queueSize),
	)
	s.locks = newStripedLock(defaultLockStripes)
	return s
}

// Start launches the workers and, if configured, the periodic sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting zone trust service...")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pool = worker.NewPool(s.queue, s)
	s.pool.Start(runCtx)

	if s.sweepInterval > 0 {
		s.loops.Add(1)
		go s.sweepLoop(runCtx)
	}

	metrics.UpdateTrackedZones(s.store.CountStates(ctx))
	s.started = true
	s.logger.Info(ctx, "zone trust service started",
		logger.Int("partitions", s.partitions),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("sweepInterval", s.sweepInterval),
	)
	return nil
}

// Stop drains the queue, stops background loops and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.logger.Info(ctx, "stopping zone trust service...")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultStopTimeout)
		defer cancel()
	}

	var firstErr error
	if s.pool != nil {
		// Closes the queue; workers finish what is already queued.
		if err := s.pool.Shutdown(ctx); err != nil {
			firstErr = err
		}
	} else {
		_ = s.queue.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.loops.Wait()

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}

	s.started = false
	s.logger.Info(ctx, "zone trust service stopped")
	return firstErr
}

func (s *Service) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) now() time.Time { return s.clock() }

// Stats is a point-in-time view of the service for monitoring.
type Stats struct {
	Started             bool         `json:"started"`
	Partitions          int          `json:"partitions"`
	QueueCapacity       int          `json:"queue_capacity"`
	QueueLength         int          `json:"queue_length"`
	TrackedZones        int          `json:"tracked_zones"`
	DedupeEntries       int64        `json:"dedupe_entries"`
	WeatherCacheEntries int          `json:"weather_cache_entries"`
	Received            uint64       `json:"received"`
	Accepted            uint64       `json:"accepted"`
	Duplicates          uint64       `json:"duplicates"`
	Rejected            uint64       `json:"rejected"`
	Processed           uint64       `json:"processed"`
	Failed              uint64       `json:"failed"`
	LastSweep           *SweepReport `json:"last_sweep,omitempty"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	st := Stats{
		Started:             s.isRunning(),
		Partitions:          s.partitions,
		QueueCapacity:       s.queueSize,
		QueueLength:         s.queue.Len(ctx),
		TrackedZones:        s.store.CountStates(ctx),
		DedupeEntries:       s.deduper.Size(),
		WeatherCacheEntries: s.weather.Len(),
		Received:            s.received.Load(),
		Accepted:            s.accepted.Load(),
		Duplicates:          s.duplicates.Load(),
		Rejected:            s.rejected.Load(),
		Processed:           s.processed.Load(),
		Failed:              s.failed.Load(),
		LastSweep:           s.lastSweep.Load(),
	}
	metrics.UpdateTrackedZones(st.TrackedZones)
	metrics.UpdateWeatherCacheEntries(st.WeatherCacheEntries)
	return st
}
