package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"flowboard/pkg/common"

	"go.uber.org/zap"
)

// Check reports whether one dependency is usable
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a health handler. Readiness runs every check.
func NewHealthHandler(checks map[string]Check, logger *zap.Logger) *HealthHandler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]interface{}{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	common.RespondJSON(w, status, body)
}
