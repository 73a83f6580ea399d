// ABOUTME: Liveness and readiness endpoints
// ABOUTME: Readiness probes the downstream backend; liveness only reports the process is up

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// readyTimeout bounds the backend probe behind /health/ready.
const readyTimeout = 3 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Version    string `json:"version"`
	Timestamp  string `json:"timestamp"`
	ToolsCount int    `json:"toolsCount"`
	Uptime     string `json:"uptime"`
}

// ReadyResponse is the body of GET /health/ready.
type ReadyResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns 200 OK while the process is serving.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Service:    ServiceName,
		Version:    Version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ToolsCount: g.registry.ToolCount(),
		Uptime:     time.Since(g.startedAt).Round(time.Second).String(),
	})
}

// handleReady returns 200 OK if the backend answers at all, 503 otherwise.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := g.client.Ping(ctx); err != nil {
		g.logger.Warn("backend not reachable", "backend", g.client.BaseURL(), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status:  "unavailable",
			Backend: g.client.BaseURL(),
			Error:   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{
		Status:  "ready",
		Backend: g.client.BaseURL(),
	})
}
