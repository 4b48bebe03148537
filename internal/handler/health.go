package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports nil when a dependency is healthy.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the status of each registered dependency.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthResponse is the HTTP response for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Services: make(map[string]string, len(h.checks)),
	}

	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			resp.Status = "degraded"
			resp.Services[name] = "unhealthy: " + err.Error()
			continue
		}
		resp.Services[name] = "healthy"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(c, code, resp)
}
