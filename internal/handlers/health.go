package handlers

import (
	"context"
	"net/http"
	"time"

	"actionbroker/internal/common"
)

// HealthHandler handles health check requests. When a host application
// URL is configured, the response reports its reachability as well.
type HealthHandler struct {
	logger  *common.Logger
	hostURL string
}

// NewHealthHandler creates a new health handler. hostURL may be empty to
// skip the upstream probe.
func NewHealthHandler(logger *common.Logger, hostURL string) *HealthHandler {
	return &HealthHandler{logger: logger, hostURL: hostURL}
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	body := map[string]string{"status": "ok"}
	if h.hostURL != "" {
		body["hostapp"] = h.probeHostApp(r.Context())
	}
	WriteJSON(w, http.StatusOK, body)
}

// probeHostApp checks whether the host application answers its own
// health endpoint.
func (h *HealthHandler) probeHostApp(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.hostURL+"/api/health", nil)
	if err != nil {
		return "down"
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "down"
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return "ok"
	}
	return "down"
}
