// pkg/realtime/session_test.go
package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer 测试用实时服务端
// 默认行为：接受升级，把入站事件写入 inbound 通道
type testServer struct {
	t       *testing.T
	srv     *httptest.Server
	dials   atomic.Int64
	inbound chan Envelope

	mu    sync.Mutex
	conns []*websocket.Conn

	// onConn 非空时接管连接处理
	onConn func(conn *websocket.Conn)
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{
		t:       t,
		inbound: make(chan Envelope, 64),
	}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.dials.Add(1)
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		onConn := ts.onConn
		ts.mu.Unlock()

		if onConn != nil {
			onConn(conn)
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			ts.inbound <- env
		}
	}))
	t.Cleanup(ts.close)
	return ts
}

func (ts *testServer) setOnConn(fn func(conn *websocket.Conn)) {
	ts.mu.Lock()
	ts.onConn = fn
	ts.mu.Unlock()
}

func (ts *testServer) url() string {
	return "ws://" + strings.TrimPrefix(ts.srv.URL, "http://")
}

// send 向最近一个连接推送事件
func (ts *testServer) send(t *testing.T, event string, payload any) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(Envelope{Event: event, Data: data})
	require.NoError(t, err)

	ts.mu.Lock()
	require.NotEmpty(t, ts.conns)
	conn := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, body))
}

func (ts *testServer) close() {
	ts.mu.Lock()
	for _, c := range ts.conns {
		c.Close()
	}
	ts.conns = nil
	ts.mu.Unlock()
	ts.srv.Close()
}

func testConfig(url string) *Config {
	return &Config{
		URL:                  url,
		DialTimeout:          2 * time.Second,
		WriteTimeout:         2 * time.Second,
		BaseDelay:            20 * time.Millisecond,
		MaxReconnectAttempts: 3,
		LivenessInterval:     50 * time.Millisecond,
		SendQueueSize:        16,
	}
}

func testCreds(userID string, role Role) Credentials {
	return Credentials{UserID: userID, Role: role, Token: "token-" + userID}
}

// waitForState 等待会话进入目标状态
func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached state %v, current %v", want, s.State())
}

// waitForInbound 等待服务端收到指定事件
func waitForInbound(t *testing.T, ts *testServer, event string) Envelope {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case env := <-ts.inbound:
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("server never received event %q", event)
		}
	}
}

func TestOpenAndJoinRoom(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)

	env := waitForInbound(t, ts, EventJoinRoom)
	var p JoinRoomPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, RoleCustomer, p.Role)
}

func TestOpenValidation(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Open(Credentials{Role: RoleAgent, Token: "t"}), ErrMissingCredentials)
	assert.ErrorIs(t, s.Open(Credentials{UserID: "u", Role: RoleAgent}), ErrMissingCredentials)
	assert.ErrorIs(t, s.Open(Credentials{UserID: "u", Role: "driver", Token: "t"}), ErrInvalidRole)
	assert.Equal(t, StateIdle, s.State())
}

func TestOpenCoalesced(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	creds := testCreds("u1", RoleAdmin)
	require.NoError(t, s.Open(creds))
	waitForState(t, s, StateConnected)

	// 同一身份重复 Open 不得触发新的握手
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Open(creds))
	}
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(1), ts.dials.Load())
	assert.Equal(t, StateConnected, s.State())
}

func TestOpenSwitchIdentity(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)
	waitForInbound(t, ts, EventJoinRoom)

	// 换一个身份：旧连接拆除，用新凭证重新握手
	require.NoError(t, s.Open(testCreds("u2", RoleAgent)))
	waitForState(t, s, StateConnected)

	env := waitForInbound(t, ts, EventJoinRoom)
	var p JoinRoomPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "u2", p.UserID)
	assert.Equal(t, int64(2), ts.dials.Load())
}

func TestJoinParcelRoomIdempotent(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)
	waitForInbound(t, ts, EventJoinRoom)

	for i := 0; i < 3; i++ {
		s.JoinParcelRoom("p-100")
	}
	waitForInbound(t, ts, EventJoinParcelRoom)

	// 后续不应再有重复的加入消息
	select {
	case env := <-ts.inbound:
		t.Fatalf("unexpected extra event %q", env.Event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLeaveParcelRoomWithoutJoin(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)
	waitForInbound(t, ts, EventJoinRoom)

	s.LeaveParcelRoom("never-joined")

	select {
	case env := <-ts.inbound:
		t.Fatalf("unexpected event %q", env.Event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSubscriptionIsolation(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	gotA := make(chan json.RawMessage, 1)
	var gotB atomic.Int64
	s.Subscribe("event-a", func(data json.RawMessage) { gotA <- data })
	s.Subscribe("event-b", func(json.RawMessage) { gotB.Add(1) })

	require.NoError(t, s.Open(testCreds("u1", RoleAdmin)))
	waitForState(t, s, StateConnected)

	ts.send(t, "event-a", map[string]string{"k": "v"})

	select {
	case data := <-gotA:
		var m map[string]string
		require.NoError(t, json.Unmarshal(data, &m))
		assert.Equal(t, "v", m["k"])
	case <-time.After(2 * time.Second):
		t.Fatal("event-a handler never fired")
	}
	assert.Equal(t, int64(0), gotB.Load())
}

func TestUnsubscribe(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	var kept, removed atomic.Int64
	s.Subscribe("ev", func(json.RawMessage) { kept.Add(1) })
	unsub := s.Subscribe("ev", func(json.RawMessage) { removed.Add(1) })
	unsub()
	unsub() // 重复调用无副作用

	require.NoError(t, s.Open(testCreds("u1", RoleAdmin)))
	waitForState(t, s, StateConnected)

	ts.send(t, "ev", struct{}{})

	deadline := time.Now().Add(2 * time.Second)
	for kept.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int64(1), kept.Load())
	assert.Equal(t, int64(0), removed.Load())
}

func TestEmitDroppedWhenIdle(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)

	// 未连接时发送不报错，也不产生任何网络流量
	s.Emit(EventUpdateAgentLocation, AgentLocationPayload{
		Location: LatLng{Lat: 1, Lng: 2},
	})
	s.UpdateParcelStatus("p-1", "IN TRANSIT", nil)

	assert.Equal(t, int64(0), ts.dials.Load())
	assert.Equal(t, StateIdle, s.State())
}

func TestReconnectExhaustedGoesIdle(t *testing.T) {
	// 服务端只返回错误，握手永远失败
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig("ws://" + strings.TrimPrefix(srv.URL, "http://"))
	cfg.MaxReconnectAttempts = 2
	s, err := NewSession(cfg)
	require.NoError(t, err)

	var disconnects atomic.Int64
	s.OnStateChange(func(old, new State) {
		if new == StateDisconnected {
			disconnects.Add(1)
		}
	})

	require.NoError(t, s.Open(testCreds("u1", RoleAgent)))
	waitForState(t, s, StateIdle)

	// 初次失败进入 disconnected，之后每次重试失败再进入一次
	assert.Equal(t, int64(cfg.MaxReconnectAttempts), disconnects.Load())
}

func TestReconnectAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)
	waitForInbound(t, ts, EventJoinRoom)

	s.JoinParcelRoom("p-7")
	waitForInbound(t, ts, EventJoinParcelRoom)

	// 粗暴断开第一条连接，会话应自动重连并重新进入房间
	ts.mu.Lock()
	ts.conns[0].Close()
	ts.mu.Unlock()

	waitForInbound(t, ts, EventJoinRoom)
	env := waitForInbound(t, ts, EventJoinParcelRoom)
	var p ParcelRoomPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "p-7", p.ParcelID)
	assert.GreaterOrEqual(t, ts.dials.Load(), int64(2))
}

func TestForcedDisconnectIsTerminal(t *testing.T) {
	ts := newTestServer(t)
	ts.setOnConn(func(conn *websocket.Conn) {
		// 读到第一条消息后踢下线
		conn.ReadMessage()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseCodeForcedDisconnect, "revoked"),
			time.Now().Add(time.Second),
		)
		time.Sleep(50 * time.Millisecond)
		conn.Close()
	})

	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)
	waitForState(t, s, StateIdle)

	// 强制断开不重试
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(1), ts.dials.Load())
	assert.Equal(t, StateIdle, s.State())
}

func TestOpenAfterForcedDisconnectDropsOldIdentity(t *testing.T) {
	ts := newTestServer(t)
	var kicked atomic.Bool
	ts.setOnConn(func(conn *websocket.Conn) {
		if kicked.CompareAndSwap(false, true) {
			// 第一条连接：等进入包裹房间后踢下线
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var env Envelope
				if json.Unmarshal(data, &env) == nil && env.Event == EventJoinParcelRoom {
					break
				}
			}
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(CloseCodeForcedDisconnect, "revoked"),
				time.Now().Add(time.Second),
			)
			time.Sleep(50 * time.Millisecond)
			conn.Close()
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) == nil {
				ts.inbound <- env
			}
		}
	})

	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(testCreds("u1", RoleCustomer)))
	waitForState(t, s, StateConnected)

	var leaked atomic.Int64
	s.Subscribe("u1-private", func(json.RawMessage) { leaked.Add(1) })
	s.JoinParcelRoom("p-secret")
	waitForState(t, s, StateIdle)

	// 强断回到 idle 后换用户重开：上一个身份的房间不得被重放
	require.NoError(t, s.Open(testCreds("u2", RoleAgent)))
	waitForState(t, s, StateConnected)

	env := waitForInbound(t, ts, EventJoinRoom)
	var p JoinRoomPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "u2", p.UserID)

	select {
	case env := <-ts.inbound:
		t.Fatalf("unexpected event %q after identity switch", env.Event)
	case <-time.After(150 * time.Millisecond):
	}

	// 上一个会话期间的订阅也不得收到新会话的事件
	ts.send(t, "u1-private", struct{}{})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(0), leaked.Load())
}

func TestCloseClearsScopedSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)

	// idle 时的订阅跨会话存活
	s.Subscribe("persistent", func(json.RawMessage) {})

	require.NoError(t, s.Open(testCreds("u1", RoleAdmin)))
	waitForState(t, s, StateConnected)

	// 会话期间的订阅随会话销毁
	s.Subscribe("scoped", func(json.RawMessage) {})
	assert.Equal(t, 1, s.registry.count("scoped"))

	s.Close()
	s.Close() // 重复关闭安全

	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, s.registry.count("scoped"))
	assert.Equal(t, 1, s.registry.count("persistent"))
}

func TestStateObserverRemoval(t *testing.T) {
	ts := newTestServer(t)
	s, err := NewSession(testConfig(ts.url()))
	require.NoError(t, err)
	defer s.Close()

	var fired atomic.Int64
	remove := s.OnStateChange(func(old, new State) { fired.Add(1) })
	remove()

	require.NoError(t, s.Open(testCreds("u1", RoleAdmin)))
	waitForState(t, s, StateConnected)
	assert.Equal(t, int64(0), fired.Load())
}
