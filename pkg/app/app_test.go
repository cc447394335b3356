// pkg/app/app_test.go
package app

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/couriersync/pkg/logger"
)

type fakeServer struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (s *fakeServer) Start() error { s.started.Store(true); return nil }
func (s *fakeServer) Stop() error  { s.stopped.Store(true); return nil }

type fakeCloser struct {
	order *[]string
	name  string
}

func (c *fakeCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

func TestAppRunAndShutdown(t *testing.T) {
	a := NewBaseApp(
		WithName("test-app"),
		WithLogger(logger.NewNoop()),
		WithStopTimeout(time.Second),
	)

	srv := &fakeServer{}
	a.AppendServer(srv)

	var order []string
	a.AppendCloser(&fakeCloser{order: &order, name: "first"})
	a.AppendCloser(&fakeCloser{order: &order, name: "second"})

	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.started.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, srv.started.Load())

	require.NoError(t, a.Shutdown())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after Shutdown")
	}

	assert.True(t, srv.stopped.Load())
	// Closer 逆序关闭
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestAppRunTwice(t *testing.T) {
	a := NewBaseApp(WithName("dup"), WithLogger(logger.NewNoop()))

	go a.Run()
	time.Sleep(50 * time.Millisecond)

	assert.ErrorIs(t, a.Run(), ErrAppAlreadyRunning)
	a.Shutdown()
}

func TestShutdownIdempotent(t *testing.T) {
	a := NewBaseApp(WithName("idem"), WithLogger(logger.NewNoop()))
	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
}
