package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failure")

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreakerWithSettings("test", BreakerSettings{
		MaxRequests:  1,
		MinRequests:  4,
		Interval:     time.Minute,
		Timeout:      10 * time.Second,
		FailureRatio: 0.5,
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func fail() (interface{}, error)    { return nil, errUpstream }
func succeed() (interface{}, error) { return "ok", nil }

func TestCircuitBreaker_TripsAfterFailureRatio(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(ctx, fail)
		require.ErrorIs(t, err, errUpstream)
		assert.Equal(t, StateClosed, cb.State(), "below min requests the breaker stays closed")
	}

	_, err := cb.Execute(ctx, fail)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateOpen, cb.State())

	_, err = cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	res, err := cb.Execute(ctx, succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.Execute(ctx, fail)
	}
	clock = clock.Add(11 * time.Second)

	_, err := cb.Execute(ctx, fail)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestGenerateCode(t *testing.T) {
	a, err := GenerateCode(8)
	require.NoError(t, err)
	b, err := GenerateCode(8)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
