package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/nearcare/internal/application/services"
)

// RegistryStatusProvider reports the loaded registry snapshot
type RegistryStatusProvider interface {
	Status() services.RegistryStatus
}

// RegistryReloader reloads the registry on demand
type RegistryReloader interface {
	Reload(ctx context.Context) (int, error)
}

// RegistryHandler exposes registry status and reload
type RegistryHandler struct {
	status   RegistryStatusProvider
	reloader RegistryReloader
}

// NewRegistryHandler creates a new registry handler. reloader may be nil to disable reloads.
func NewRegistryHandler(status RegistryStatusProvider, reloader RegistryReloader) *RegistryHandler {
	return &RegistryHandler{status: status, reloader: reloader}
}

// GetStatus handles GET /api/registry
func (h *RegistryHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.status.Status())
}

// Reload handles POST /api/registry/reload
func (h *RegistryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		respondWithError(w, http.StatusServiceUnavailable, "registry reload is not enabled")
		return
	}

	count, err := h.reloader.Reload(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	log.Info().Int("facilities", count).Msg("Registry reloaded via API")
	respondWithJSON(w, http.StatusOK, h.status.Status())
}
