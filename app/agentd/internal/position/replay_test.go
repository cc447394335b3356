// app/agentd/internal/position/replay_test.go
package position

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/couriersync/pkg/realtime"
)

func TestReplayExhaustion(t *testing.T) {
	points := []realtime.LatLng{
		{Lat: 1, Lng: 2},
		{Lat: 3, Lng: 4},
	}
	r := NewReplay(points, time.Millisecond, false)

	ctx := context.Background()

	s1, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s1.Lat)
	assert.False(t, s1.CapturedAt.IsZero())

	s2, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, s2.Lat)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayLoop(t *testing.T) {
	points := []realtime.LatLng{{Lat: 1, Lng: 2}}
	r := NewReplay(points, time.Millisecond, true)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s.Lat)
	}
}

func TestReplayEmpty(t *testing.T) {
	r := NewReplay(nil, time.Millisecond, true)
	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayContextCancelled(t *testing.T) {
	points := []realtime.LatLng{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}
	r := NewReplay(points, time.Minute, false)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := r.Next(ctx)
	require.NoError(t, err)

	cancel()
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
