package handlers

import (
	"net/http"

	"github.com/zatekoja/nearcare/pkg/circuitbreaker"
)

// BreakerStates reports feed circuit breaker states by endpoint
type BreakerStates interface {
	States() map[string]circuitbreaker.State
}

// HealthHandler serves liveness with registry and feed breaker detail
type HealthHandler struct {
	registry RegistryStatusProvider
	breakers BreakerStates
}

// NewHealthHandler creates a new health handler. Both arguments may be nil.
func NewHealthHandler(registry RegistryStatusProvider, breakers BreakerStates) *HealthHandler {
	return &HealthHandler{registry: registry, breakers: breakers}
}

// Health handles GET /health. An open breaker degrades the report but the service stays live.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}

	if h.registry != nil {
		status := h.registry.Status()
		body["facilities"] = status.Facilities
		if status.Facilities == 0 {
			body["status"] = "degraded"
		}
	}
	if h.breakers != nil {
		feeds := make(map[string]string)
		for name, state := range h.breakers.States() {
			feeds[name] = string(state)
			if state == circuitbreaker.StateOpen {
				body["status"] = "degraded"
			}
		}
		body["feeds"] = feeds
	}

	respondWithJSON(w, http.StatusOK, body)
}
