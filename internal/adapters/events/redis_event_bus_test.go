package events

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/nearcare/internal/domain/entities"
	"github.com/zatekoja/nearcare/internal/domain/providers"
	redisclient "github.com/zatekoja/nearcare/internal/infrastructure/clients/redis"
	"github.com/zatekoja/nearcare/pkg/config"
)

func newTestBus(t *testing.T) (*RedisEventBus, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	require.NoError(t, err)

	client, err := redisclient.NewClient(context.Background(), &config.RedisConfig{Host: server.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisEventBus(client, "")
	t.Cleanup(func() { _ = bus.Close() })
	return bus, server
}

func receive(t *testing.T, ch <-chan *entities.RegistryEvent) *entities.RegistryEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func waitClosed(t *testing.T, ch <-chan *entities.RegistryEvent) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel not closed")
		}
	}
}

func TestRedisEventBus_DefaultsToRegistryChannel(t *testing.T) {
	bus, _ := newTestBus(t)

	assert.Equal(t, providers.EventChannelRegistry, bus.Channel())
}

func TestRedisEventBus_PublishReachesSubscriber(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	sent := entities.NewRegistryEvent(entities.RegistryEventReloadRequested, "registry-import", 1234)
	require.NoError(t, bus.Publish(ctx, sent))

	got := receive(t, ch)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, entities.RegistryEventReloadRequested, got.Type)
	assert.Equal(t, "registry-import", got.Source)
	assert.Equal(t, 1234, got.Count)
}

func TestRedisEventBus_EverySubscriberReceives(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	sent := entities.NewRegistryEvent(entities.RegistryEventReloadRequested, "api-1", 3)
	require.NoError(t, bus.Publish(ctx, sent))

	assert.Equal(t, sent.ID, receive(t, first).ID)
	assert.Equal(t, sent.ID, receive(t, second).ID)
}

func TestRedisEventBus_SkipsMalformedPayloads(t *testing.T) {
	bus, server := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	server.Publish(providers.EventChannelRegistry, "not json")
	sent := entities.NewRegistryEvent(entities.RegistryEventReloadRequested, "api-2", 5)
	require.NoError(t, bus.Publish(ctx, sent))

	assert.Equal(t, sent.ID, receive(t, ch).ID)
}

func TestRedisEventBus_ContextCancelClosesSubscription(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	waitClosed(t, ch)
}

func TestRedisEventBus_Close(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	waitClosed(t, ch)

	assert.ErrorIs(t, bus.Publish(ctx, entities.NewRegistryEvent(entities.RegistryEventReloadRequested, "api-3", 0)), ErrBusClosed)
	_, err = bus.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.NoError(t, bus.Close())
}
