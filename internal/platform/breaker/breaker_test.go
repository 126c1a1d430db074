package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New(2, time.Minute)
	b.now = func() time.Time { return now }

	boom := errors.New("boom")
	calls := 0
	fail := func() error { calls++; return boom }

	require.ErrorIs(t, b.Call(fail), boom)
	assert.Equal(t, Closed, b.State())
	require.ErrorIs(t, b.Call(fail), boom)
	assert.Equal(t, Open, b.State())

	require.ErrorIs(t, b.Call(fail), ErrOpen)
	assert.Equal(t, 2, calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Call(func() error { calls++; return nil }))
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 3, calls)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New(1, time.Minute)
	b.now = func() time.Time { return now }

	boom := errors.New("boom")
	_ = b.Call(func() error { return boom })
	require.Equal(t, Open, b.State())

	now = now.Add(61 * time.Second)
	require.ErrorIs(t, b.Call(func() error { return boom }), boom)
	assert.Equal(t, Open, b.State())
	require.ErrorIs(t, b.Call(func() error { return nil }), ErrOpen)
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := New(1, time.Minute)

	err := b.Call(func() error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Closed, b.State())
}
