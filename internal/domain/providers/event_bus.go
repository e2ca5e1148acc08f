package providers

import (
	"context"

	"github.com/zatekoja/nearcare/internal/domain/entities"
)

// EventBus carries registry events between API instances and the import tool.
// Every bus is bound to one channel when it is built.
type EventBus interface {
	// Publish sends event to every instance listening on the bus
	Publish(ctx context.Context, event *entities.RegistryEvent) error

	// Subscribe delivers events until ctx is done or the bus is closed, then closes the channel
	Subscribe(ctx context.Context) (<-chan *entities.RegistryEvent, error)

	Close() error
}

// EventChannelRegistry carries registry reload requests between instances
const EventChannelRegistry = "registry:updates"
