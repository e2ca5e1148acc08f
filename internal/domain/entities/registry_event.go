package entities

import (
	"time"

	"github.com/google/uuid"
)

// RegistryEventType represents the type of registry event
type RegistryEventType string

const (
	// RegistryEventReloadRequested asks every API instance to reload its registry
	RegistryEventReloadRequested RegistryEventType = "registry.reload_requested"
)

// RegistryEvent is published when the stored registry changes
type RegistryEvent struct {
	ID        string            `json:"id"`
	Type      RegistryEventType `json:"type"`
	Source    string            `json:"source"`
	Count     int               `json:"count"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewRegistryEvent creates a new registry event
func NewRegistryEvent(eventType RegistryEventType, source string, count int) *RegistryEvent {
	return &RegistryEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}
