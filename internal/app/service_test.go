package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/zonetrust/internal/adapters/repository"
	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
	"github.com/okian/zonetrust/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (p *recordingPublisher) PublishUpdate(_ context.Context, _ model.ZoneConfidenceState, e model.AuditEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// startService starts a service on a fake clock and stops it on Reset.
func startService(clock *fakeClock, opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithClock(clock.Now)}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	Reset(func() {
		_ = svc.Stop(context.Background())
	})
	return svc
}

func waitProcessed(svc *service.Service, n uint64) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st := svc.GetStats(context.Background())
		if st.Processed+st.Failed >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

// submitAndWait submits r and waits until the service has processed it.
func submitAndWait(svc *service.Service, r model.IntelReport) model.IntelSubmission { //nolint:gocritic // test helper
	want := svc.GetStats(context.Background()).Processed + 1
	sub, err := svc.Submit(context.Background(), r)
	So(err, ShouldBeNil)
	So(waitProcessed(svc, want), ShouldBeTrue)
	return sub
}

func weight(w float64) *float64 { return &w }

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then it rejects intel before Start", func() {
			_, err := svc.Submit(ctx, model.IntelReport{ZoneID: "alfama", Type: "VERIFICATION"})
			So(err, ShouldEqual, service.ErrNotStarted)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("When it is started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx).Started, ShouldBeTrue)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped and cannot restart", func() {
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
				So(svc.Start(ctx), ShouldEqual, service.ErrStopped)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		clock := newClock()
		svc := startService(clock)
		ctx := context.Background()

		Convey("When reports are invalid", func() {
			future := t0.Add(time.Hour)
			bad := []model.IntelReport{
				{Type: "VERIFICATION"},
				{ZoneID: "alfama", Type: "GOSSIP"},
				{ZoneID: "alfama", Type: "VERIFICATION", TrustWeight: weight(1.6)},
				{ZoneID: "alfama", Type: "VERIFICATION", TrustWeight: weight(-0.1)},
				{ZoneID: "alfama", Type: "VERIFICATION", CreatedAt: &future},
			}

			Convey("Then each is rejected as an invalid submission", func() {
				for _, r := range bad {
					_, err := svc.Submit(ctx, r)
					So(errors.Is(err, service.ErrInvalidSubmission), ShouldBeTrue)
				}
				So(svc.GetStats(ctx).Rejected, ShouldEqual, uint64(len(bad)))
			})
		})

		Convey("When a report omits id, weight and time", func() {
			rep := 800
			sub, err := svc.Submit(ctx, model.IntelReport{ZoneID: " alfama ", Type: "quiet_confirmed", Reputation: &rep})

			Convey("Then they are filled in", func() {
				So(err, ShouldBeNil)
				So(sub.ID, ShouldNotBeEmpty)
				So(sub.ZoneID, ShouldEqual, "alfama")
				So(sub.Type, ShouldEqual, model.IntelQuietConfirmed)
				So(sub.TrustWeight, ShouldAlmostEqual, 1.3)
				So(sub.CreatedAt.Equal(t0), ShouldBeTrue)
			})
		})

		Convey("When the same id is submitted twice", func() {
			r := model.IntelReport{ID: "sub-1", ZoneID: "alfama", Type: "VERIFICATION"}
			_, err := svc.Submit(ctx, r)
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, r)

			Convey("Then the second is a duplicate and only one update happens", func() {
				So(err, ShouldEqual, service.ErrDuplicate)
				So(waitProcessed(svc, 1), ShouldBeTrue)
				trail, err := svc.AuditTrail(ctx, "alfama", 0)
				So(err, ShouldBeNil)
				So(len(trail), ShouldEqual, 1)
				So(svc.GetStats(ctx).Duplicates, ShouldEqual, uint64(1))
			})
		})
	})
}

func TestService_Process(t *testing.T) {
	Convey("Given a started service with a publisher", t, func() {
		clock := newClock()
		pub := &recordingPublisher{}
		svc := startService(clock, service.WithPublisher(pub))
		ctx := context.Background()

		Convey("When a zone receives its first verification", func() {
			sub := submitAndWait(svc, model.IntelReport{ZoneID: "alfama", Type: "VERIFICATION", TrustWeight: weight(1)})

			Convey("Then one day of decay and the full boost apply", func() {
				st, err := svc.ConfidenceOf(ctx, "alfama")
				So(err, ShouldBeNil)
				So(st.Score, ShouldAlmostEqual, 60)
				So(st.Level, ShouldEqual, model.LevelMedium)
				So(st.State, ShouldEqual, model.StateActive)
				So(st.LastVerifiedAt.Equal(t0), ShouldBeTrue)
				So(st.IntelCount24h, ShouldEqual, 1)
				So(st.LastAudit, ShouldNotBeNil)
				So(st.LastAudit.Delta, ShouldAlmostEqual, 10)
			})

			Convey("Then the update is audited and published", func() {
				trail, err := svc.AuditTrail(ctx, "alfama", 10)
				So(err, ShouldBeNil)
				So(len(trail), ShouldEqual, 1)
				So(trail[0].SubmissionID, ShouldEqual, sub.ID)
				So(trail[0].Trigger, ShouldEqual, model.Trigger(model.IntelVerification))
				So(trail[0].Factors.DecayApplied, ShouldAlmostEqual, 2)
				So(trail[0].Factors.BoostApplied, ShouldAlmostEqual, 12)
				So(pub.count(), ShouldEqual, 1)
			})

			Convey("And a second verification follows", func() {
				submitAndWait(svc, model.IntelReport{ZoneID: "alfama", Type: "VERIFICATION", TrustWeight: weight(1)})

				Convey("Then its boost diminishes", func() {
					st, err := svc.ConfidenceOf(ctx, "alfama")
					So(err, ShouldBeNil)
					So(st.Score, ShouldAlmostEqual, 70.2)
					So(st.IntelCount24h, ShouldEqual, 2)
				})
			})
		})

		Convey("When two hazard reports arrive", func() {
			submitAndWait(svc, model.IntelReport{ZoneID: "belem", Type: "HAZARD_REPORT"})
			first, err := svc.ConfidenceOf(ctx, "belem")
			So(err, ShouldBeNil)
			submitAndWait(svc, model.IntelReport{ZoneID: "belem", Type: "HAZARD_REPORT"})

			Convey("Then the first only cautions and the second takes the zone offline", func() {
				So(first.HazardActive, ShouldBeFalse)
				So(first.Score, ShouldAlmostEqual, 43)

				st, err := svc.ConfidenceOf(ctx, "belem")
				So(err, ShouldBeNil)
				So(st.HazardActive, ShouldBeTrue)
				So(st.State, ShouldEqual, model.StateOffline)
				So(st.Score, ShouldAlmostEqual, 20)
				So(st.HazardExpiresAt.Equal(t0.Add(7*24*time.Hour)), ShouldBeTrue)
			})
		})

		Convey("When a price far above the zone average is submitted", func() {
			for range 3 {
				submitAndWait(svc, model.IntelReport{ZoneID: "baixa", Type: "PRICE_SUBMISSION", Payload: map[string]any{"price": 10.0}})
			}
			submitAndWait(svc, model.IntelReport{ZoneID: "baixa", Type: "PRICE_SUBMISSION", Payload: map[string]any{"price": 30.0}})

			Convey("Then the zone is flagged and degraded", func() {
				st, err := svc.ConfidenceOf(ctx, "baixa")
				So(err, ShouldBeNil)
				So(st.AnomalyDetected, ShouldBeTrue)
				So(st.AnomalyReason, ShouldEqual, "price 3.0x above zone average")
				So(st.State, ShouldEqual, model.StateDegraded)

				trail, err := svc.AuditTrail(ctx, "baixa", 1)
				So(err, ShouldBeNil)
				So(trail[0].Factors.AnomalyPenalty, ShouldAlmostEqual, 10)
			})

			Convey("And a normal price clears the flag", func() {
				submitAndWait(svc, model.IntelReport{ZoneID: "baixa", Type: "PRICE_SUBMISSION", Payload: map[string]any{"price": 12.0}})

				st, err := svc.ConfidenceOf(ctx, "baixa")
				So(err, ShouldBeNil)
				So(st.AnomalyDetected, ShouldBeFalse)
				So(st.State, ShouldEqual, model.StateActive)
			})
		})
	})
}

// gatedStore blocks GetState until the gate is closed.
type gatedStore struct {
	repository.Store
	gate chan struct{}
}

func (g *gatedStore) GetState(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	<-g.gate
	return g.Store.GetState(ctx, zoneID)
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose only partition is stuck", t, func() {
		store := &gatedStore{Store: repository.NewMemoryStore(), gate: make(chan struct{})}
		svc := service.New(
			service.WithStore(store),
			service.WithPartitions(1),
			service.WithQueueSize(1),
			service.WithClock(newClock().Now),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When reports keep arriving", func() {
			var err error
			var accepted int
			for range 10 {
				if _, err = svc.Submit(ctx, model.IntelReport{ZoneID: "alfama", Type: "VERIFICATION"}); err != nil {
					break
				}
				accepted++
			}

			Convey("Then the service pushes back and drains what it accepted on Stop", func() {
				So(err, ShouldEqual, service.ErrBackpressure)
				So(accepted, ShouldBeLessThan, 10)

				close(store.gate)
				So(svc.Stop(ctx), ShouldBeNil)
				st := svc.GetStats(ctx)
				So(st.Processed, ShouldEqual, uint64(accepted))

				_, err := svc.Submit(ctx, model.IntelReport{ZoneID: "alfama", Type: "VERIFICATION"})
				So(err, ShouldEqual, service.ErrNotStarted)
			})
		})
	})
}

func TestService_Tick(t *testing.T) {
	Convey("Given a zone verified three days ago", t, func() {
		clock := newClock()
		svc := startService(clock)
		ctx := context.Background()
		submitAndWait(svc, model.IntelReport{ZoneID: "alfama", Type: "VERIFICATION", TrustWeight: weight(1)})
		clock.Advance(72 * time.Hour)

		Convey("When it is ticked", func() {
			st, err := svc.Tick(ctx, "alfama")

			Convey("Then two days past grace are decayed and counters reset", func() {
				So(err, ShouldBeNil)
				So(st.Score, ShouldAlmostEqual, 56)
				So(st.IntelCount24h, ShouldEqual, 0)
				So(st.BoostApplied24h, ShouldEqual, 0)
				So(st.LastAudit.Trigger, ShouldEqual, model.TriggerTick)

				trail, err := svc.AuditTrail(ctx, "alfama", 0)
				So(err, ShouldBeNil)
				So(len(trail), ShouldEqual, 2)
				So(trail[0].Trigger, ShouldEqual, model.TriggerTick)
				So(trail[0].SubmissionID, ShouldBeEmpty)
			})
		})

		Convey("When it is ticked on consecutive days", func() {
			first, err := svc.Tick(ctx, "alfama")
			So(err, ShouldBeNil)
			clock.Advance(24 * time.Hour)
			second, err := svc.Tick(ctx, "alfama")
			So(err, ShouldBeNil)

			Convey("Then each day costs the daily rate once", func() {
				So(first.Score, ShouldAlmostEqual, 56)
				So(second.Score, ShouldAlmostEqual, 54)
				So(second.DecayedThrough, ShouldNotBeNil)
				So(second.DecayedThrough.Equal(clock.Now()), ShouldBeTrue)
			})
		})

		Convey("Then an untracked zone cannot be ticked", func() {
			_, err := svc.Tick(ctx, "nowhere")
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			_, err = svc.Tick(ctx, "")
			So(err, ShouldEqual, service.ErrInvalidZone)
		})

		Convey("When the hazard window lapses", func() {
			submitAndWait(svc, model.IntelReport{ZoneID: "belem", Type: "HAZARD_REPORT"})
			submitAndWait(svc, model.IntelReport{ZoneID: "belem", Type: "HAZARD_REPORT"})
			clock.Advance(8 * 24 * time.Hour)

			Convey("Then a sweep clears the hazard", func() {
				report, err := svc.Sweep(ctx)
				So(err, ShouldBeNil)
				So(report.Zones, ShouldEqual, 2)
				So(report.Failed, ShouldEqual, 0)

				st, err := svc.ConfidenceOf(ctx, "belem")
				So(err, ShouldBeNil)
				So(st.HazardActive, ShouldBeFalse)
				So(st.State, ShouldNotEqual, model.StateOffline)
				So(svc.GetStats(ctx).LastSweep, ShouldNotBeNil)
			})
		})
	})
}

func testZones() []model.Zone {
	return []model.Zone{
		{ID: "alfama", Name: "Alfama", PrimaryTexture: model.TextureHistoric, Center: geo.Point{Lat: 38.7118, Lon: -9.1300}, Walkability: 70, Safety: 80},
		{ID: "belem", Name: "Belém", PrimaryTexture: model.TextureWaterfront, Center: geo.Point{Lat: 38.6970, Lon: -9.2060}, Walkability: 85, Safety: 90},
		{ID: "lx-factory", Name: "LX Factory", PrimaryTexture: model.TextureShopping, SecondaryTextures: []model.Texture{model.TextureCafeDistrict}, Center: geo.Point{Lat: 38.7033, Lon: -9.1786}, Walkability: 60, Safety: 75},
	}
}

func TestService_Zones(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := startService(newClock())
		ctx := context.Background()

		Convey("When a valid catalog is stored", func() {
			So(svc.PutZones(ctx, testZones()), ShouldBeNil)

			Convey("Then it is listed and untouched zones read as neutral", func() {
				zones, err := svc.ListZones(ctx)
				So(err, ShouldBeNil)
				So(len(zones), ShouldEqual, 3)

				st, err := svc.ConfidenceOf(ctx, "belem")
				So(err, ShouldBeNil)
				So(st.Score, ShouldEqual, model.DefaultScore)
				So(st.State, ShouldEqual, model.StateActive)
			})

			Convey("Then unknown zones are not found", func() {
				_, err := svc.ConfidenceOf(ctx, "nowhere")
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Then invalid catalogs are rejected whole", func() {
			cases := []func(z *model.Zone){
				func(z *model.Zone) { z.ID = "" },
				func(z *model.Zone) { z.PrimaryTexture = "BEACH" },
				func(z *model.Zone) { z.Walkability = 101 },
				func(z *model.Zone) { z.Safety = -1 },
				func(z *model.Zone) { z.Center = geo.Point{Lat: 91} },
				func(z *model.Zone) { z.ID = "belem" },
			}
			for _, mutate := range cases {
				zones := testZones()
				mutate(&zones[0])
				So(errors.Is(svc.PutZones(ctx, zones), service.ErrInvalidZone), ShouldBeTrue)
			}
			zones, err := svc.ListZones(ctx)
			So(err, ShouldBeNil)
			So(zones, ShouldBeEmpty)
		})
	})
}

func TestService_Recommend(t *testing.T) {
	Convey("Given a catalog with one hazardous zone", t, func() {
		svc := startService(newClock(), service.WithMaxRecommendations(2))
		ctx := context.Background()
		So(svc.PutZones(ctx, testZones()), ShouldBeNil)
		submitAndWait(svc, model.IntelReport{ZoneID: "belem", Type: "HAZARD_REPORT"})
		submitAndWait(svc, model.IntelReport{ZoneID: "belem", Type: "HAZARD_REPORT"})

		Convey("When recommendations are requested", func() {
			res, err := svc.Recommend(ctx, service.RecommendRequest{})

			Convey("Then the hazard zone is excluded and the rest are ranked", func() {
				So(err, ShouldBeNil)
				So(len(res.Recommendations), ShouldEqual, 2)
				So(res.Excluded[ranking.ExcludedHazard], ShouldEqual, 1)
				for _, rec := range res.Recommendations {
					So(rec.Zone.ID, ShouldNotEqual, "belem")
				}
				So(res.Summary.Weather, ShouldEqual, "unavailable")
			})
		})

		Convey("When the request excludes a visited zone and asks for one result", func() {
			res, err := svc.Recommend(ctx, service.RecommendRequest{ExcludeZoneIDs: []string{"alfama"}, Limit: 1})

			Convey("Then only the remaining zone is returned", func() {
				So(err, ShouldBeNil)
				So(len(res.Recommendations), ShouldEqual, 1)
				So(res.Recommendations[0].Zone.ID, ShouldEqual, "lx-factory")
				So(res.Excluded[ranking.ExcludedVisited], ShouldEqual, 1)
			})
		})

		Convey("When weather was cached near the visitor", func() {
			here := geo.Point{Lat: 38.7100, Lon: -9.1400}
			So(svc.PutWeather(ctx, here, weather.Reading{TemperatureC: 18, Precipitation: weather.PrecipRain, WindKph: 12, IsDay: true}), ShouldBeNil)
			res, err := svc.Recommend(ctx, service.RecommendRequest{Location: &here})

			Convey("Then the cached reading is used", func() {
				So(err, ShouldBeNil)
				So(res.Summary.Weather, ShouldNotEqual, "unavailable")
				So(res.Recommendations[0].DistanceKm, ShouldNotBeNil)
			})
		})

		Convey("Then invalid requests are rejected", func() {
			_, err := svc.Recommend(ctx, service.RecommendRequest{Limit: -1})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			_, err = svc.Recommend(ctx, service.RecommendRequest{Location: &geo.Point{Lat: 100}})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			_, err = svc.Recommend(ctx, service.RecommendRequest{Profile: &ranking.UserProfile{PreferredTextures: []model.Texture{"BEACH"}}})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			So(errors.Is(svc.PutWeather(ctx, geo.Point{}, weather.Reading{Precipitation: "HAIL"}), service.ErrInvalidRequest), ShouldBeTrue)
		})
	})
}
