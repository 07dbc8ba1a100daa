package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/config"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const zonesBody = `{"zones":[{"id":"alfama","name":"Alfama","primary_texture":"HISTORIC",
"center":{"lat":38.7114,"lon":-9.1300},"walkability":80,"safety":75}]}`

func TestNewApplication(t *testing.T) {
	convey.Convey("Given a default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the application is built without a database", func() {
			app, err := newApplication(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(app, convey.ShouldNotBeNil)
			convey.So(app.consumer, convey.ShouldBeNil)
			convey.So(app.publisher, convey.ShouldBeNil)

			convey.Convey("Then the ops and docs routes are served", func() {
				for _, path := range []string{"/healthz", "/metrics", "/stats", "/openapi.yaml", "/api-docs"} {
					rec := httptest.NewRecorder()
					app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("Then the zone catalog round-trips through the API", func() {
				rec := httptest.NewRecorder()
				app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/zones", strings.NewReader(zonesBody)))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)

				rec = httptest.NewRecorder()
				app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/zones/alfama/confidence", http.NoBody))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, `"zone_id":"alfama"`)
			})

			convey.Convey("Then readiness fails until the service starts", func() {
				rec := httptest.NewRecorder()
				app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
			})

			convey.Convey("Then intel is refused until the service starts", func() {
				rec := httptest.NewRecorder()
				body := `{"zone_id":"alfama","type":"VERIFICATION"}`
				app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/intel", strings.NewReader(body)))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
			})

			convey.Reset(func() { _ = app.store.Close() })
		})

		convey.Convey("When a database path is configured", func() {
			cfg.DBPath = filepath.Join(t.TempDir(), "zonetrust.db")
			app, err := newApplication(ctx, cfg)

			convey.Convey("Then the sqlite store is opened", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fmt.Sprintf("%T", app.store), convey.ShouldEqual, "*repository.SQLiteStore")
				convey.So(app.store.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When kafka brokers are configured", func() {
			cfg.KafkaBrokers = "127.0.0.1:9092"
			app, err := newApplication(ctx, cfg)

			convey.Convey("Then a consumer and a publisher are wired", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(app.consumer, convey.ShouldNotBeNil)
				convey.So(app.publisher, convey.ShouldNotBeNil)
				convey.So(app.consumer.Close(), convey.ShouldBeNil)
				convey.So(app.publisher.Close(), convey.ShouldBeNil)
				convey.So(app.store.Close(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When kafka has no updates topic", func() {
			cfg.KafkaBrokers = "127.0.0.1:9092"
			cfg.KafkaUpdatesTopic = ""
			_, err := newApplication(ctx, cfg)

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestApplicationRun(t *testing.T) {
	convey.Convey("Given an application listening on a free port", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		app, err := newApplication(context.Background(), cfg)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When its context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- app.run(ctx) }()
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then it shuts down cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
				convey.So(app.svc.GetStats(context.Background()).Started, convey.ShouldBeFalse)
			})
		})
	})
}

func TestRetryable(t *testing.T) {
	convey.Convey("Given submit errors from the service", t, func() {
		convey.So(retryable(service.ErrBackpressure), convey.ShouldBeTrue)
		convey.So(retryable(fmt.Errorf("submit: %w", service.ErrNotStarted)), convey.ShouldBeTrue)
		convey.So(retryable(service.ErrInvalidSubmission), convey.ShouldBeFalse)
		convey.So(retryable(errors.New("boom")), convey.ShouldBeFalse)
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("When the system metrics are refreshed", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When the updaters run until their context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			svc := service.New()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})
	})
}
