package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type SystemHandler struct {
	// Classifier is optional; when set its state is included in /health.
	Classifier HealthChecker
}

type healthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Classifier string `json:"classifier,omitempty"`
}

// HealthHandler always answers 200 while the process serves requests; a
// classifier outage is reported in the body only.
func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: "flyaway"}
	if h.Classifier != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Classifier = "ok"
		if err := h.Classifier.Health(ctx); err != nil {
			resp.Classifier = "unavailable"
		}
	}
	writeJSON(w, resp, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","buildTime":"%s"}`, version, buildTime)
	}
}
