package routes

import (
	"net/http"

	"github.com/zatekoja/nearcare/internal/api/handlers"
	"github.com/zatekoja/nearcare/internal/api/middleware"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	healthHandler   *handlers.HealthHandler
	searchHandler   *handlers.SearchHandler
	registryHandler *handlers.RegistryHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
	hospitalMaxAge  int
}

// NewRouter creates a new router. healthHandler, cacheMiddleware and metrics may be nil.
func NewRouter(
	healthHandler *handlers.HealthHandler,
	searchHandler *handlers.SearchHandler,
	registryHandler *handlers.RegistryHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
	hospitalMaxAge int,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		healthHandler:   healthHandler,
		searchHandler:   searchHandler,
		registryHandler: registryHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		allowedOrigins:  allowedOrigins,
		hospitalMaxAge:  hospitalMaxAge,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	if r.healthHandler != nil {
		r.mux.HandleFunc("GET /health", r.healthHandler.Health)
	} else {
		r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}

	// Search endpoints
	r.mux.HandleFunc("GET /api/hospitals", r.searchHandler.SearchHospitals)
	r.mux.HandleFunc("GET /api/emergency", r.searchHandler.SearchEmergency)
	r.mux.HandleFunc("GET /api/pharmacies", r.searchHandler.SearchPharmacies)
	r.mux.HandleFunc("GET /api/pharmacy", r.searchHandler.SearchPharmacies)

	// Registry endpoints
	if r.registryHandler != nil {
		r.mux.HandleFunc("GET /api/registry", r.registryHandler.GetStatus)
		r.mux.HandleFunc("POST /api/registry/reload", r.registryHandler.Reload)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(r.hospitalMaxAge)(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
