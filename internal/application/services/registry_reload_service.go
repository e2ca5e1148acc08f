package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
)

// RegistryReloader rebuilds the registry snapshot from its source
type RegistryReloader interface {
	Reload(ctx context.Context) (int, error)
}

// RegistryReloadService keeps every API instance's registry and response cache in step.
// Reloads requested here are broadcast; reload events from other publishers are applied.
type RegistryReloadService struct {
	registry    RegistryReloader
	cache       providers.CacheProvider
	eventBus    providers.EventBus
	cachePrefix string
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewRegistryReloadService creates a new reload service. cache and eventBus may be nil.
func NewRegistryReloadService(registry RegistryReloader, cache providers.CacheProvider, eventBus providers.EventBus, cachePrefix string) *RegistryReloadService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RegistryReloadService{
		registry:    registry,
		cache:       cache,
		eventBus:    eventBus,
		cachePrefix: cachePrefix,
		instanceID:  "api-" + uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins listening for reload events
func (s *RegistryReloadService) Start() error {
	if s.eventBus == nil {
		return nil
	}
	eventChan, err := s.eventBus.Subscribe(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to registry updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Str("instance", s.instanceID).Msg("Registry reload service started")
	return nil
}

// Stop stops the reload service
func (s *RegistryReloadService) Stop() {
	s.cancel()
	log.Info().Msg("Registry reload service stopped")
}

// Reload reloads the local registry, purges cached responses and tells other instances to reload
func (s *RegistryReloadService) Reload(ctx context.Context) (int, error) {
	count, err := s.apply(ctx)
	if err != nil {
		return 0, err
	}

	if s.eventBus != nil {
		event := entities.NewRegistryEvent(entities.RegistryEventReloadRequested, s.instanceID, count)
		if err := s.eventBus.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to broadcast registry reload")
		}
	}
	return count, nil
}

func (s *RegistryReloadService) apply(ctx context.Context) (int, error) {
	count, err := s.registry.Reload(ctx)
	if err != nil {
		return 0, err
	}

	if s.cache != nil && s.cachePrefix != "" {
		purged, err := s.cache.DeleteByPrefix(ctx, s.cachePrefix)
		if err != nil {
			log.Warn().Err(err).Str("prefix", s.cachePrefix).Msg("Failed to purge cached responses")
		} else if purged > 0 {
			log.Info().Int("keys", purged).Str("prefix", s.cachePrefix).Msg("Purged cached responses")
		}
	}
	return count, nil
}

func (s *RegistryReloadService) processEvents(eventChan <-chan *entities.RegistryEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *RegistryReloadService) handleEvent(event *entities.RegistryEvent) {
	if event.Type != entities.RegistryEventReloadRequested || event.Source == s.instanceID {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	count, err := s.apply(ctx)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Str("source", event.Source).Msg("Registry reload from event failed")
		return
	}
	log.Info().
		Str("event_id", event.ID).
		Str("source", event.Source).
		Int("facilities", count).
		Msg("Registry reloaded from event")
}
