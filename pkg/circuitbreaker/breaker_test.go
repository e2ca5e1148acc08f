package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearcare/pkg/circuitbreaker"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("emergency")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	cb := circuitbreaker.New(cfg, zerolog.Nop())

	upstream := errors.New("timeout")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, upstream
		})
		assert.ErrorIs(t, err, upstream)
	}

	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(context.Background(), func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_PassesResults(t *testing.T) {
	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("pharmacy"), zerolog.Nop())

	out, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestManager_ReusesBreakers(t *testing.T) {
	m := circuitbreaker.NewManager(nil, zerolog.Nop())

	a := m.Get("emergency")
	b := m.Get("emergency")
	c := m.Get("pharmacy")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, map[string]circuitbreaker.State{
		"emergency": circuitbreaker.StateClosed,
		"pharmacy":  circuitbreaker.StateClosed,
	}, m.States())
}
