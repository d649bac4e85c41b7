package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context) map[string]error

func (f checkerFunc) CheckHealth(ctx context.Context) map[string]error { return f(ctx) }

func TestCheckNowRecordsStatus(t *testing.T) {
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s := NewService(checkerFunc(func(context.Context) map[string]error {
		return map[string]error{
			"telegram": errors.New("getMe: unauthorized"),
			"console":  nil,
		}
	}), "@every 1m")
	s.now = func() time.Time { return fixed }

	_, ok := s.Status()
	assert.False(t, ok)

	got := s.CheckNow(context.Background())
	assert.False(t, got.Healthy)
	assert.Equal(t, fixed, got.CheckedAt)
	assert.Equal(t, ChannelStatus{Healthy: true}, got.Channels["console"])
	assert.Equal(t, ChannelStatus{Error: "getMe: unauthorized"}, got.Channels["telegram"])

	stored, ok := s.Status()
	require.True(t, ok)
	assert.Equal(t, got, stored)
}

func TestStartProbesImmediatelyAndStops(t *testing.T) {
	var calls atomic.Int32
	s := NewService(checkerFunc(func(context.Context) map[string]error {
		calls.Add(1)
		return map[string]error{"telegram": nil}
	}), "@every 1h")

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.Equal(t, int32(1), calls.Load())

	status, ok := s.Status()
	require.True(t, ok)
	assert.True(t, status.Healthy)

	s.Stop()
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewService(checkerFunc(func(context.Context) map[string]error { return nil }), "every minute")
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid health schedule")
}
