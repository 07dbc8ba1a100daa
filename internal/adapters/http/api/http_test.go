package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/zonetrust/internal/adapters/http/api"
	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
)

// mockDeps records calls and returns canned results.
type mockDeps struct {
	submitErr error
	submitted []model.IntelReport

	states map[string]model.ZoneConfidenceState
	audit  []model.AuditEntry
	limit  int

	zones   []model.Zone
	zoneErr error

	recommendReq service.RecommendRequest
	result       ranking.Result
	recErr       error

	weatherAt *geo.Point
}

func (m *mockDeps) Submit(_ context.Context, r model.IntelReport) (model.IntelSubmission, error) {
	m.submitted = append(m.submitted, r)
	sub := model.IntelSubmission{ID: r.ID, ZoneID: r.ZoneID}
	if sub.ID == "" {
		sub.ID = "generated"
	}
	return sub, m.submitErr
}

func (m *mockDeps) ConfidenceOf(_ context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	st, ok := m.states[zoneID]
	if !ok {
		return model.ZoneConfidenceState{}, fmt.Errorf("zone %s: %w", zoneID, service.ErrNotFound)
	}
	return st, nil
}

func (m *mockDeps) AuditTrail(_ context.Context, zoneID string, limit int) ([]model.AuditEntry, error) {
	m.limit = limit
	if _, ok := m.states[zoneID]; !ok {
		return nil, nil
	}
	return m.audit, nil
}

func (m *mockDeps) Tick(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error) {
	st, err := m.ConfidenceOf(ctx, zoneID)
	if err != nil {
		return st, err
	}
	st.Score -= 2
	return st, nil
}

func (m *mockDeps) PutZones(_ context.Context, zones []model.Zone) error {
	if m.zoneErr != nil {
		return m.zoneErr
	}
	m.zones = append(m.zones, zones...)
	return nil
}

func (m *mockDeps) ListZones(context.Context) ([]model.Zone, error) { return m.zones, nil }

func (m *mockDeps) Recommend(_ context.Context, req service.RecommendRequest) (ranking.Result, error) {
	m.recommendReq = req
	return m.result, m.recErr
}

func (m *mockDeps) PutWeather(_ context.Context, at geo.Point, r weather.Reading) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	m.weatherAt = &at
	return nil
}

type mockStats struct{}

func (mockStats) GetStats(context.Context) service.Stats {
	return service.Stats{Started: true, Partitions: 8, Processed: 42}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then health, stats and metrics respond", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)

			w = do(mux, http.MethodGet, "/readyz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ready"`)

			w = do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[service.Stats](w)
			So(stats.Processed, ShouldEqual, uint64(42))

			w = do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then wrong methods are refused", func() {
			So(do(mux, http.MethodGet, "/intel", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(do(mux, http.MethodDelete, "/zones", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then a nil mux panics", func() {
			So(func() { api.NewServer(&mockDeps{}, mockStats{}).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestIntelHandler(t *testing.T) {
	Convey("Given the intel endpoint", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a report is posted", func() {
			w := do(mux, http.MethodPost, "/intel", `{"id":"s-1","zone_id":"alfama","type":"VERIFICATION","reputation":600}`)

			Convey("Then it is accepted for processing", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(w.Body.String(), ShouldContainSubstring, `"accepted"`)
				So(len(deps.submitted), ShouldEqual, 1)
				So(*deps.submitted[0].Reputation, ShouldEqual, 600)
			})
		})

		Convey("Then errors map onto status codes", func() {
			cases := []struct {
				err    error
				status int
			}{
				{service.ErrDuplicate, http.StatusOK},
				{service.ErrBackpressure, http.StatusTooManyRequests},
				{fmt.Errorf("%w: zone_id is required", service.ErrInvalidSubmission), http.StatusBadRequest},
				{service.ErrStopped, http.StatusServiceUnavailable},
				{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
			}
			for _, c := range cases {
				deps.submitErr = c.err
				w := do(mux, http.MethodPost, "/intel", `{"zone_id":"alfama","type":"VERIFICATION"}`)
				So(w.Code, ShouldEqual, c.status)
			}
		})

		Convey("Then malformed bodies are bad requests", func() {
			So(do(mux, http.MethodPost, "/intel", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/intel", "").Code, ShouldEqual, http.StatusBadRequest)
			So(len(deps.submitted), ShouldEqual, 0)
		})

		Convey("Then oversized bodies are refused", func() {
			big := `{"zone_id":"alfama","type":"VERIFICATION","payload":{"note":"` + strings.Repeat("x", 2<<20) + `"}}`
			So(do(mux, http.MethodPost, "/intel", big).Code, ShouldEqual, http.StatusRequestEntityTooLarge)
		})
	})
}

func TestZonesHandler(t *testing.T) {
	Convey("Given a zone with confidence and audit history", t, func() {
		at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		st := model.NewZoneConfidenceState("alfama", at)
		deps := &mockDeps{
			states: map[string]model.ZoneConfidenceState{"alfama": st},
			audit:  []model.AuditEntry{{ID: "a-1", ZoneID: "alfama", At: at, Trigger: model.TriggerTick}},
		}
		mux := newMux(deps)

		Convey("Then its confidence is served", func() {
			w := do(mux, http.MethodGet, "/zones/alfama/confidence", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			got := decode[model.ZoneConfidenceState](w)
			So(got.Score, ShouldEqual, model.DefaultScore)
			So(got.Level, ShouldEqual, model.LevelMedium)
		})

		Convey("Then unknown zones are not found", func() {
			So(do(mux, http.MethodGet, "/zones/nowhere/confidence", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/zones/nowhere/tick", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then the audit trail honours the limit", func() {
			w := do(mux, http.MethodGet, "/zones/alfama/audit?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.limit, ShouldEqual, 5)
			So(w.Body.String(), ShouldContainSubstring, `"a-1"`)

			So(do(mux, http.MethodGet, "/zones/alfama/audit?limit=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/zones/alfama/audit?limit=x", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then an empty audit trail is an empty list", func() {
			w := do(mux, http.MethodGet, "/zones/belem/audit", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"entries":[]`)
		})

		Convey("Then a tick returns the new state", func() {
			w := do(mux, http.MethodPost, "/zones/alfama/tick", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[model.ZoneConfidenceState](w).Score, ShouldEqual, 48)
		})

		Convey("When the catalog is replaced", func() {
			body := `{"zones":[{"id":"alfama","name":"Alfama","primary_texture":"HISTORIC","center":{"lat":38.71,"lon":-9.13},"walkability":70,"safety":80}]}`
			w := do(mux, http.MethodPut, "/zones", body)

			Convey("Then the zones are stored and listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				w = do(mux, http.MethodGet, "/zones", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"count":1`)
				So(deps.zones[0].Center.Lat, ShouldEqual, 38.71)
			})
		})

		Convey("When the catalog is invalid", func() {
			deps.zoneErr = fmt.Errorf("%w: id is required", service.ErrInvalidZone)

			Convey("Then it is a bad request", func() {
				So(do(mux, http.MethodPut, "/zones", `{"zones":[{}]}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRecommendHandler(t *testing.T) {
	Convey("Given the recommendation endpoints", t, func() {
		deps := &mockDeps{result: ranking.Result{
			Recommendations: []ranking.ZoneRecommendation{{Zone: model.Zone{ID: "alfama"}, TotalScore: 77}},
			Excluded:        map[ranking.ExclusionReason]int{ranking.ExcludedHazard: 1},
			Summary:         ranking.Summary{TimeOfDay: ranking.Morning, Weather: "unavailable"},
		}}
		mux := newMux(deps)

		Convey("When recommendations are requested with a context", func() {
			w := do(mux, http.MethodPost, "/recommendations",
				`{"location":{"lat":38.71,"lon":-9.14},"profile":{"preferred_textures":["HISTORIC"]},"exclude_zone_ids":["belem"],"limit":3}`)

			Convey("Then the context is passed through and the ranking returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.recommendReq.Limit, ShouldEqual, 3)
				So(deps.recommendReq.Location.Lat, ShouldEqual, 38.71)
				So(deps.recommendReq.ExcludeZoneIDs, ShouldResemble, []string{"belem"})
				So(deps.recommendReq.Profile.PreferredTextures, ShouldResemble, []model.Texture{model.TextureHistoric})

				got := decode[ranking.Result](w)
				So(got.Recommendations[0].TotalScore, ShouldEqual, 77)
				So(got.Excluded[ranking.ExcludedHazard], ShouldEqual, 1)
			})
		})

		Convey("Then an empty body asks for the defaults", func() {
			So(do(mux, http.MethodPost, "/recommendations", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then invalid requests are bad requests", func() {
			deps.recErr = fmt.Errorf("%w: negative limit", service.ErrInvalidRequest)
			So(do(mux, http.MethodPost, "/recommendations", `{"limit":-1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then weather readings are cached by location", func() {
			w := do(mux, http.MethodPost, "/weather", `{"location":{"lat":38.71,"lon":-9.14},"reading":{"temperature_c":19,"precipitation":"NONE","wind_kph":8,"is_day":true}}`)
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.weatherAt, ShouldNotBeNil)

			So(do(mux, http.MethodPost, "/weather", `{"reading":{"precipitation":"NONE"}}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/weather", `{"location":{"lat":1,"lon":1},"reading":{"precipitation":"HAIL"}}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
