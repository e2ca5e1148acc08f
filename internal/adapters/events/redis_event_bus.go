package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	redisclient "github.com/zatekoja/nearcare/internal/infrastructure/clients/redis"
)

// ErrBusClosed is returned by Publish and Subscribe after Close
var ErrBusClosed = errors.New("event bus closed")

const subscriberBuffer = 16

// RedisEventBus publishes registry events on one Redis pub/sub channel.
// Each Subscribe call holds its own subscription; a slow reader drops events instead of
// stalling the connection, which is fine because any reload event triggers a full reload.
type RedisEventBus struct {
	client  *redisclient.Client
	channel string

	mu     sync.Mutex
	closed bool
	subs   map[*redis.PubSub]struct{}
	wg     sync.WaitGroup
}

// NewRedisEventBus returns a bus on channel, or on the registry channel when channel is empty
func NewRedisEventBus(client *redisclient.Client, channel string) *RedisEventBus {
	if channel == "" {
		channel = providers.EventChannelRegistry
	}
	return &RedisEventBus{
		client:  client,
		channel: channel,
		subs:    make(map[*redis.PubSub]struct{}),
	}
}

// Channel returns the Redis channel the bus is bound to
func (b *RedisEventBus) Channel() string {
	return b.channel
}

func (b *RedisEventBus) Publish(ctx context.Context, event *entities.RegistryEvent) error {
	if b.isClosed() {
		return ErrBusClosed
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", b.channel).Str("event_id", event.ID).Msg("Published registry event")
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so an event published
// after it returns is delivered.
func (b *RedisEventBus) Subscribe(ctx context.Context) (<-chan *entities.RegistryEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	pubsub := b.client.Client().Subscribe(ctx, b.channel)
	b.subs[pubsub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	if _, err := pubsub.Receive(ctx); err != nil {
		b.release(pubsub)
		b.wg.Done()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan *entities.RegistryEvent, subscriberBuffer)
	go b.forward(ctx, pubsub, out)

	log.Info().Str("channel", b.channel).Msg("Subscribed to registry events")
	return out, nil
}

func (b *RedisEventBus) forward(ctx context.Context, pubsub *redis.PubSub, out chan<- *entities.RegistryEvent) {
	defer b.wg.Done()
	defer close(out)
	defer b.release(pubsub)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event entities.RegistryEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", b.channel).Msg("Failed to unmarshal registry event")
				continue
			}
			select {
			case out <- &event:
			default:
				log.Warn().Str("channel", b.channel).Str("event_id", event.ID).Msg("Subscriber busy, dropping registry event")
			}
		}
	}
}

// release closes pubsub once; later calls are no-ops
func (b *RedisEventBus) release(pubsub *redis.PubSub) {
	b.mu.Lock()
	_, ok := b.subs[pubsub]
	delete(b.subs, pubsub)
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := pubsub.Close(); err != nil {
		log.Debug().Err(err).Str("channel", b.channel).Msg("Closing subscription")
	}
}

func (b *RedisEventBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close ends every subscription and waits for their channels to close.
// It does not close the Redis client.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	open := make([]*redis.PubSub, 0, len(b.subs))
	for pubsub := range b.subs {
		open = append(open, pubsub)
	}
	b.mu.Unlock()

	for _, pubsub := range open {
		b.release(pubsub)
	}
	b.wg.Wait()

	log.Info().Str("channel", b.channel).Msg("Event bus closed")
	return nil
}

var _ providers.EventBus = (*RedisEventBus)(nil)
