// app/agentd/internal/reporter/reporter_test.go
package reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/couriersync/app/agentd/internal/position"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

func TestReporterSendsSamples(t *testing.T) {
	upgrader := websocket.Upgrader{}
	inbound := make(chan realtime.Envelope, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env realtime.Envelope
			if json.Unmarshal(data, &env) == nil {
				inbound <- env
			}
		}
	}))
	defer srv.Close()

	cfg := &realtime.Config{
		URL: "ws://" + strings.TrimPrefix(srv.URL, "http://"),
	}
	session, err := realtime.NewSession(cfg)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Open(realtime.Credentials{
		UserID: "agent-1",
		Role:   realtime.RoleAgent,
		Token:  "token",
	}))

	deadline := time.Now().Add(3 * time.Second)
	for session.State() != realtime.StateConnected && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, realtime.StateConnected, session.State())

	src := position.NewReplay([]realtime.LatLng{
		{Lat: 10, Lng: 20},
		{Lat: 11, Lng: 21},
	}, 10*time.Millisecond, false)

	rep := New(session, src, []string{"p-1"}, logger.NewNoop())
	require.NoError(t, rep.Start())
	defer rep.Stop()

	var joins, locations int
	timeout := time.After(3 * time.Second)
	for locations < 2 {
		select {
		case env := <-inbound:
			switch env.Event {
			case realtime.EventJoinParcelRoom:
				joins++
			case realtime.EventUpdateAgentLocation:
				var p realtime.AgentLocationPayload
				require.NoError(t, json.Unmarshal(env.Data, &p))
				assert.NotZero(t, p.Location.Lat)
				locations++
			}
		case <-timeout:
			t.Fatalf("expected 2 location updates, got %d", locations)
		}
	}
	assert.Equal(t, 1, joins)
}
