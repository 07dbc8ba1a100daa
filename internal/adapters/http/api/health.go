package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/zonetrust/pkg/metrics"
)

// HealthHandler serves liveness, readiness and metrics.
type HealthHandler struct {
	statsProvider StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(statsProvider StatsProvider) *HealthHandler {
	return &HealthHandler{statsProvider: statsProvider}
}

type readyResponse struct {
	Status        string `json:"status"`
	QueueLength   int    `json:"queue_length"`
	QueueCapacity int    `json:"queue_capacity"`
}

// HandleHealth handles GET /healthz requests. The process is alive if it answers.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady handles GET /readyz requests: 503 until the service accepts intel.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	st := h.statsProvider.GetStats(r.Context())
	resp := readyResponse{Status: "ready", QueueLength: st.QueueLength, QueueCapacity: st.QueueCapacity}
	if !st.Started {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the custom Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
