package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestTripsAfterThresholdFailures(t *testing.T) {
	b := New("test", Config{FailureThreshold: 2, Timeout: 50 * time.Millisecond, SuccessThreshold: 1, MaxTimeout: 200 * time.Millisecond})
	ctx := context.Background()
	boom := errors.New("boom")

	require.Error(t, b.Call(ctx, func(context.Context) error { return boom }))
	require.Equal(t, Closed, b.Stats().State)

	require.Error(t, b.Call(ctx, func(context.Context) error { return boom }))
	require.Equal(t, Open, b.Stats().State)

	err := b.Call(ctx, func(context.Context) error { return nil })
	require.True(t, apperr.Is(err, apperr.KindCircuitOpen))
}

func TestHalfOpenRecoversToClosed(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Timeout: 10 * time.Millisecond, SuccessThreshold: 1, MaxTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	require.Error(t, b.Call(ctx, func(context.Context) error { return errors.New("boom") }))
	require.Equal(t, Open, b.Stats().State)

	time.Sleep(15 * time.Millisecond)

	require.NoError(t, b.Call(ctx, func(context.Context) error { return nil }))
	require.Equal(t, Closed, b.Stats().State)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Timeout: 10 * time.Millisecond, SuccessThreshold: 2, MaxTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	require.Error(t, b.Call(ctx, func(context.Context) error { return errors.New("boom") }))
	time.Sleep(15 * time.Millisecond)

	require.Error(t, b.Call(ctx, func(context.Context) error { return errors.New("boom again") }))
	require.Equal(t, Open, b.Stats().State)
}
