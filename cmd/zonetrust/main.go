package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/zonetrust/internal/adapters/http/api"
	"github.com/okian/zonetrust/internal/adapters/http/swagger"
	"github.com/okian/zonetrust/internal/adapters/mq/kafka"
	"github.com/okian/zonetrust/internal/adapters/repository"
	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/config"
	"github.com/okian/zonetrust/internal/domain/confidence"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// Use stderr since the logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	app, err := newApplication(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to build application", logger.Error(err))
		os.Exit(1)
	}
	if err := app.run(ctx); err != nil {
		log.Error(ctx, "application stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// application holds the wired components of the server.
type application struct {
	cfg       *config.Config
	svc       *service.Service
	store     repository.Store
	handler   http.Handler
	consumer  *kafka.Consumer
	publisher *kafka.Publisher
	log       logger.Logger
}

// newApplication opens the store, connects Kafka when brokers are configured
// and registers the HTTP routes. Nothing is started.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{cfg: cfg, log: logger.Get()}

	var store repository.Store
	if cfg.DBPath != "" {
		s, err := repository.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		store = s
		app.log.Info(ctx, "using sqlite store", logger.String("path", cfg.DBPath))
	} else {
		store = repository.NewMemoryStore()
		app.log.Warn(ctx, "db_path not set; state is kept in memory only")
	}

	opts := []service.Option{
		service.WithLogger(app.log.Named("service")),
		service.WithStore(store),
		service.WithPartitions(cfg.Partitions),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithSweepInterval(cfg.SweepInterval),
		service.WithSweepConcurrency(cfg.SweepConcurrency),
		service.WithMaxRecommendations(cfg.MaxRecommendations),
		service.WithWeatherCache(weather.NewCache(weather.WithTTL(cfg.WeatherCacheTTL))),
		service.WithEngine(confidence.NewEngine(
			confidence.WithDecayRate(cfg.DecayRatePerDay),
			confidence.WithDecayGrace(cfg.DecayGrace()),
		)),
	}

	if cfg.KafkaEnabled() {
		writer, err := kafka.NewWriter(cfg.Brokers(), cfg.KafkaUpdatesTopic)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("kafka writer: %w", err)
		}
		app.publisher = kafka.NewPublisher(writer)
		opts = append(opts, service.WithPublisher(app.publisher))
	}

	app.store = store
	app.svc = service.New(opts...)

	if cfg.KafkaEnabled() {
		reader, err := kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers(),
			Topic:   cfg.KafkaIntelTopic,
			GroupID: cfg.KafkaGroupID,
		})
		if err != nil {
			_ = app.publisher.Close()
			_ = store.Close()
			return nil, fmt.Errorf("kafka reader: %w", err)
		}
		app.consumer = kafka.NewConsumer(reader, app.svc, kafka.WithRetryable(retryable))
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(app.svc, app.svc).Register(ctx, mux)
	app.handler = mux
	return app, nil
}

// retryable reports submit errors worth holding the Kafka offset for.
func retryable(err error) bool {
	return errors.Is(err, service.ErrBackpressure) || errors.Is(err, service.ErrNotStarted)
}

// run serves until ctx is done, then shuts everything down in order:
// HTTP, the consumer, the service (draining its queue), the publisher and
// finally the store.
func (a *application) run(ctx context.Context) error {
	if err := a.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumerDone := make(chan error, 1)
	if a.consumer != nil {
		go func() { consumerDone <- a.consumer.Run(consumerCtx) }()
		a.log.Info(ctx, "consuming intel from kafka",
			logger.String("topic", a.cfg.KafkaIntelTopic),
			logger.String("group", a.cfg.KafkaGroupID),
		)
	} else {
		consumerDone <- nil
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "starting HTTP server", logger.String("addr", a.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	a.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	stopConsumer()
	if err := <-consumerDone; err != nil {
		a.log.Error(ctx, "kafka consumer failed", logger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.log.Warn(ctx, "kafka reader close failed", logger.Error(err))
		}
	}

	if err := a.svc.Stop(shutdownCtx); err != nil {
		a.log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn(ctx, "kafka writer close failed", logger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn(ctx, "store close failed", logger.Error(err))
	}

	a.log.Info(ctx, "server stopped")
	return runErr
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that refreshes service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the tracked-zone and weather gauges.
			_ = svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
