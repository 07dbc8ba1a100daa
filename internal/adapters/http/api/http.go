// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/zonetrust/internal/app"
	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/internal/domain/ranking"
	"github.com/okian/zonetrust/internal/domain/weather"
	"github.com/okian/zonetrust/pkg/geo"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Submit(ctx context.Context, r model.IntelReport) (model.IntelSubmission, error)

	ConfidenceOf(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error)
	AuditTrail(ctx context.Context, zoneID string, limit int) ([]model.AuditEntry, error)
	Tick(ctx context.Context, zoneID string) (model.ZoneConfidenceState, error)

	PutZones(ctx context.Context, zones []model.Zone) error
	ListZones(ctx context.Context) ([]model.Zone, error)

	Recommend(ctx context.Context, req service.RecommendRequest) (ranking.Result, error)
	PutWeather(ctx context.Context, location geo.Point, r weather.Reading) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	intelHandler     *IntelHandler
	zonesHandler     *ZonesHandler
	recommendHandler *RecommendHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(statsProvider),
		statsHandler:     NewStatsHandler(statsProvider),
		intelHandler:     NewIntelHandler(deps),
		zonesHandler:     NewZonesHandler(deps),
		recommendHandler: NewRecommendHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /intel", MetricsMiddleware(s.intelHandler.HandlePostIntel, "intel"))

	mux.HandleFunc("GET /zones", MetricsMiddleware(s.zonesHandler.HandleListZones, "zones"))
	mux.HandleFunc("PUT /zones", MetricsMiddleware(s.zonesHandler.HandlePutZones, "zones"))
	mux.HandleFunc("GET /zones/{id}/confidence", MetricsMiddleware(s.zonesHandler.HandleGetConfidence, "zone_confidence"))
	mux.HandleFunc("GET /zones/{id}/audit", MetricsMiddleware(s.zonesHandler.HandleGetAudit, "zone_audit"))
	mux.HandleFunc("POST /zones/{id}/tick", MetricsMiddleware(s.zonesHandler.HandleTick, "zone_tick"))

	mux.HandleFunc("POST /recommendations", MetricsMiddleware(s.recommendHandler.HandleRecommend, "recommendations"))
	mux.HandleFunc("POST /weather", MetricsMiddleware(s.recommendHandler.HandlePutWeather, "weather"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates a service error into its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidZone):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeBody reads a size-limited JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return WrapKind(op, ErrBodyTooLarge, err)
		case errors.Is(err, io.EOF):
			return WrapKind(op, ErrBadRequest, errEmptyBody)
		default:
			return WrapKind(op, ErrBadRequest, err)
		}
	}
	return nil
}
