package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/nearcare/internal/adapters/cache"
	"github.com/zatekoja/nearcare/internal/adapters/database"
	"github.com/zatekoja/nearcare/internal/adapters/events"
	"github.com/zatekoja/nearcare/internal/adapters/providers/availability"
	"github.com/zatekoja/nearcare/internal/adapters/tabular"
	"github.com/zatekoja/nearcare/internal/api/handlers"
	"github.com/zatekoja/nearcare/internal/api/middleware"
	"github.com/zatekoja/nearcare/internal/api/routes"
	"github.com/zatekoja/nearcare/internal/application/services"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	"github.com/zatekoja/nearcare/internal/domain/regions"
	"github.com/zatekoja/nearcare/internal/domain/repositories"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/publicdata"
	"github.com/zatekoja/nearcare/internal/infrastructure/clients/redis"
	"github.com/zatekoja/nearcare/internal/infrastructure/observability"
	"github.com/zatekoja/nearcare/pkg/circuitbreaker"
	"github.com/zatekoja/nearcare/pkg/config"
	"github.com/zatekoja/nearcare/pkg/secrets"
)

func main() {
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)
	if vaultErr != nil {
		log.Warn().Err(vaultErr).Str("path", vaultResult.Path).Msg("Failed to load secrets from Vault")
	} else if vaultResult.Enabled {
		log.Info().Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("Secrets loaded from Vault")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Facility registry
	source, closeSource, err := newFacilitySource(ctx, cfg, metrics)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.Registry.Source).Msg("Failed to open facility registry source")
	}
	defer closeSource()

	registry := services.NewFacilityRegistry(source, cfg.Registry.Source, metrics)
	if _, err := registry.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load facility registry")
	}

	// Live availability feed
	if cfg.Feed.EmergencyKey == "" {
		log.Warn().Msg("PUBLIC_DATA_API_KEY is not set; emergency and pharmacy searches will return no results")
	}
	breakers := circuitbreaker.NewManager(func(name string) circuitbreaker.Config {
		bc := circuitbreaker.DefaultConfig(name)
		bc.FailureThreshold = cfg.Feed.BreakerFailures
		bc.Timeout = cfg.Feed.BreakerOpenTimeout
		return bc
	}, log.Logger)
	feed := availability.NewFeed(
		publicdata.NewClient(cfg.Feed.BaseURL, cfg.Feed.Format, cfg.Feed.Timeout),
		availability.Config{
			EmergencyKey:  cfg.Feed.EmergencyKey,
			PharmacyKey:   cfg.Feed.PharmacyKey,
			Timeout:       cfg.Feed.Timeout,
			EmergencyRows: cfg.Feed.EmergencyRows,
			PharmacyRows:  cfg.Feed.PharmacyRows,
		},
		breakers,
		metrics,
	)

	searchService := services.NewSearchService(registry, feed, regions.NewDefaultSelector(), cfg.Search, cfg.Feed.Concurrency)

	// Optional Redis: response cache and cross-instance reload events
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable; running without response cache and reload events")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient, providers.EventChannelRegistry)
			log.Info().Str("addr", redisClient.Addr()).Msg("Redis connected")
		}
	}

	reloadService := services.NewRegistryReloadService(registry, cacheProvider, eventBus, middleware.CacheKeyPrefix)
	if err := reloadService.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start registry reload listener")
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics, cfg.Cache.HospitalTTLSeconds)
	}

	router := routes.NewRouter(
		handlers.NewHealthHandler(registry, breakers),
		handlers.NewSearchHandler(searchService),
		handlers.NewRegistryHandler(registry, reloadService),
		cacheMiddleware,
		metrics,
		cfg.Server.AllowedOrigins,
		cfg.Cache.HospitalTTLSeconds,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Int("facilities", registry.Len()).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	reloadService.Stop()
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing event bus")
		}
	}
	log.Info().Msg("Server stopped")
}

// newFacilitySource opens the configured registry source. The returned func releases it.
func newFacilitySource(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (repositories.FacilitySource, func(), error) {
	switch cfg.Registry.Source {
	case config.RegistrySourcePostgres:
		client, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return database.NewFacilityAdapter(client, metrics), func() { _ = client.Close() }, nil
	default:
		return tabular.NewCSVSource(cfg.Registry.CSVPath), func() {}, nil
	}
}
