package handlers

import (
	"context"
	"net/http"
	"time"

	"tessgen/internal/httpkit"
)

const healthCheckTimeout = 5 * time.Second

// Health reports liveness. With ?deep=true it also checks every dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "tessgen-api",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks, healthy := h.deepHealthCheck(ctx)
		health["checks"] = checks
		if !healthy {
			health["status"] = "degraded"
			h.log.FromContext(ctx).Warn("health check degraded", "checks", checks)
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) (map[string]any, bool) {
	checks := make(map[string]any, len(h.checks)+1)
	healthy := true

	for _, c := range h.checks {
		result := runCheck(ctx, c.Check)
		if result["status"] != "ok" {
			healthy = false
		}
		checks[c.Name] = result
	}

	if h.sp != nil {
		checks["storage"] = map[string]any{"status": "ok", "provider": h.sp.Provider()}
	}
	return checks, healthy
}

func runCheck(ctx context.Context, check func(context.Context) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := check(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}
	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
