// pkg/realtime/session.go
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lk2023060901/couriersync/pkg/logger"
)

// Session 实时会话管理器
//
// 为整个应用提供单条经过认证的实时信道，向上屏蔽连接、重连与认证细节。
// 每个应用根构造一个实例并注入给消费方，不使用包级单例。
// 所有公开方法都是同步调用、立即返回，网络 I/O 在内部 goroutine 中进行。
type Session struct {
	config *Config
	logger logger.Logger
	dialer *websocket.Dialer

	registry *registry

	mu       sync.Mutex
	state    State
	creds    *Credentials
	conn     *websocket.Conn
	sendCh   chan Envelope
	rooms    map[string]struct{}
	attempts int

	// epoch 连接代次，身份切换或 Close 时递增
	// 旧代次的 goroutine 和定时器据此识别自己已失效
	epoch uint64

	reconnectTimer *time.Timer
	livenessStop   chan struct{}

	stateSeq  int64
	stateSubs map[int64]func(old, new State)
}

// Option 会话选项
type Option func(*Session)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession 创建会话管理器
func NewSession(cfg *Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		config:    cfg,
		logger:    logger.NewNoop(),
		registry:  newRegistry(),
		state:     StateIdle,
		rooms:     make(map[string]struct{}),
		stateSubs: make(map[int64]func(old, new State)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.dialer = &websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
	}

	return s, nil
}

// Open 用给定凭证打开会话
//
// 同一身份重复调用会被合并：已连接或握手进行中时直接返回。
// 传入不同身份时，旧连接先被完整拆除再建立新连接。
// 握手与重连都在后台进行，结果通过状态变更通知观察。
func (s *Session) Open(creds Credentials) error {
	if creds.UserID == "" || creds.Token == "" {
		return ErrMissingCredentials
	}
	if !creds.Role.Valid() {
		return ErrInvalidRole
	}

	s.mu.Lock()

	switch s.state {
	case StateConnecting, StateConnected:
		if s.creds != nil && s.creds.UserID == creds.UserID {
			// 同一身份的并发 Open 合并为一次连接
			s.mu.Unlock()
			return nil
		}
		// 身份切换：完整拆除旧会话
		notify := s.teardownLocked()
		s.mu.Unlock()
		notify()
		s.mu.Lock()
	case StateDisconnected:
		if s.creds != nil && s.creds.UserID == creds.UserID {
			// 断线等待重连期间的显式 Open：跳过退避立即重试
			s.stopReconnectLocked()
			s.attempts = 0
			epoch := s.epoch
			notify := s.setStateLocked(StateConnecting)
			s.mu.Unlock()
			notify()
			go s.connect(epoch)
			return nil
		}
		notify := s.teardownLocked()
		s.mu.Unlock()
		notify()
		s.mu.Lock()
	case StateIdle:
		// 强断或重试耗尽会带着原身份的房间回到 idle，便于同一用户重开时恢复。
		// 换了用户则先彻底拆除，不能把上一个身份的房间和订阅带给新会话
		if s.creds != nil && s.creds.UserID != creds.UserID {
			notify := s.teardownLocked()
			s.mu.Unlock()
			notify()
			s.mu.Lock()
		}
	}

	c := creds
	s.creds = &c
	s.attempts = 0
	s.epoch++
	epoch := s.epoch
	s.startLivenessLocked(epoch)
	notify := s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	notify()

	go s.connect(epoch)
	return nil
}

// Close 关闭会话
//
// 取消重连定时器和活性探测，尽力通知离开房间，关闭传输，
// 清除会话级订阅，回到 idle。任何状态下调用都安全，包括已经关闭时。
func (s *Session) Close() {
	s.mu.Lock()
	notify := s.teardownLocked()
	s.mu.Unlock()
	notify()
}

// Emit 发送出站事件
//
// 无连接时静默丢弃：出站事件是尽力而为的遥测/指令，不保证送达。
func (s *Session) Emit(event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("realtime emit marshal failed", "event", event, "error", err)
			return
		}
		data = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trySendLocked(Envelope{Event: event, Data: data})
}

// Subscribe 注册入站事件回调，返回的函数移除且仅移除本次注册
//
// 连接建立前注册是合法的，连接后开始投递。
// 会话打开期间注册的订阅随会话销毁；idle 时注册的订阅留给未来的会话。
func (s *Session) Subscribe(event string, fn Handler) (unsubscribe func()) {
	s.mu.Lock()
	scoped := s.state != StateIdle
	s.mu.Unlock()

	sub := s.registry.add(event, fn, scoped)
	return func() {
		s.registry.remove(sub)
	}
}

// OnStateChange 注册状态变更观察者，返回移除函数
func (s *Session) OnStateChange(fn func(old, new State)) (remove func()) {
	s.mu.Lock()
	s.stateSeq++
	id := s.stateSeq
	s.stateSubs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.stateSubs, id)
		s.mu.Unlock()
	}
}

// State 返回当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected 检查是否已连接
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// JoinParcelRoom 加入包裹跟踪房间，重复加入是幂等的
func (s *Session) JoinParcelRoom(parcelID string) {
	if parcelID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[parcelID]; ok {
		return
	}
	s.rooms[parcelID] = struct{}{}

	data, _ := json.Marshal(ParcelRoomPayload{ParcelID: parcelID})
	s.trySendLocked(Envelope{Event: EventJoinParcelRoom, Data: data})
}

// LeaveParcelRoom 离开包裹跟踪房间，未加入过则无事发生
// 离开消息尽力送达即可，断开时服务端同样会清理房间成员
func (s *Session) LeaveParcelRoom(parcelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[parcelID]; !ok {
		return
	}
	delete(s.rooms, parcelID)

	data, _ := json.Marshal(ParcelRoomPayload{ParcelID: parcelID})
	s.trySendLocked(Envelope{Event: EventLeaveParcelRoom, Data: data})
}

// UpdateAgentLocation 上报配送员位置
func (s *Session) UpdateAgentLocation(loc LatLng) {
	s.Emit(EventUpdateAgentLocation, AgentLocationPayload{
		Location:  loc,
		Timestamp: time.Now().UTC(),
	})
}

// UpdateParcelStatus 上报包裹状态变更，位置可选
func (s *Session) UpdateParcelStatus(parcelID, status string, loc *LatLng) {
	s.Emit(EventUpdateParcelStatus, ParcelStatusPayload{
		ParcelID:  parcelID,
		Status:    status,
		Location:  loc,
		Timestamp: time.Now().UTC(),
	})
}

// ================================
// 内部实现
// ================================

// connect 发起一次连接尝试
func (s *Session) connect(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch || s.creds == nil {
		s.mu.Unlock()
		return
	}
	creds := *s.creds
	s.mu.Unlock()

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+creds.Token)
	header.Set(HeaderUserID, creds.UserID)
	header.Set(HeaderUserRole, string(creds.Role))

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	conn, resp, err := s.dialer.DialContext(ctx, s.config.URL, header)
	cancel()
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		s.logger.Warn("realtime handshake failed", "url", s.config.URL, "error", err)
		s.handleDisconnect(epoch, false)
		return
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.sendCh = make(chan Envelope, s.config.SendQueueSize)
	s.attempts = 0
	sendCh := s.sendCh
	notify := s.setStateLocked(StateConnected)
	s.mu.Unlock()
	notify()

	s.logger.Info("realtime connected", "user_id", creds.UserID, "role", creds.Role)

	go s.writeLoop(conn, sendCh)
	go s.readLoop(epoch, conn)

	// 握手成功后进入角色房间，并恢复仍在跟踪中的包裹房间
	s.Emit(EventJoinRoom, JoinRoomPayload{UserID: creds.UserID, Role: creds.Role})
	s.mu.Lock()
	for id := range s.rooms {
		data, _ := json.Marshal(ParcelRoomPayload{ParcelID: id})
		s.trySendLocked(Envelope{Event: EventJoinParcelRoom, Data: data})
	}
	s.mu.Unlock()
}

// readLoop 读取循环，单一派发 goroutine 保证同名事件的投递顺序
func (s *Session) readLoop(epoch uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(epoch, isForcedClose(err))
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Debug("realtime bad inbound frame", "error", err)
			continue
		}
		s.registry.dispatch(env.Event, env.Data)
	}
}

// writeLoop 写入循环，sendCh 关闭后退出
func (s *Session) writeLoop(conn *websocket.Conn, ch <-chan Envelope) {
	for env := range ch {
		data, err := json.Marshal(env)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// 断开由读循环统一上报
			return
		}
	}
}

// handleDisconnect 处理断开：forced 表示服务端主动踢下线
func (s *Session) handleDisconnect(epoch uint64, forced bool) {
	s.mu.Lock()
	if epoch != s.epoch || s.state == StateDisconnected || s.state == StateIdle {
		s.mu.Unlock()
		return
	}

	s.closeConnLocked()

	if forced {
		// 服务端强制断开：视为授权撤销，不重试
		s.logger.Warn("realtime forced disconnect by server")
		s.stopLivenessLocked()
		s.stopReconnectLocked()
		notify := s.setStateLocked(StateIdle)
		s.mu.Unlock()
		notify()
		return
	}

	if s.attempts >= s.config.MaxReconnectAttempts {
		// 重试耗尽：放弃，需要显式重新 Open
		s.logger.Warn("realtime reconnect attempts exhausted",
			"max_attempts", s.config.MaxReconnectAttempts,
		)
		s.stopLivenessLocked()
		notify := s.setStateLocked(StateIdle)
		s.mu.Unlock()
		notify()
		return
	}

	s.attempts++
	attempt := s.attempts
	delay := s.config.BackoffDelay(attempt)
	notify := s.setStateLocked(StateDisconnected)

	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if epoch != s.epoch || s.state != StateDisconnected {
			s.mu.Unlock()
			return
		}
		n := s.setStateLocked(StateConnecting)
		s.mu.Unlock()
		n()
		s.connect(epoch)
	})

	s.logger.Info("realtime reconnecting",
		"attempt", attempt,
		"delay", delay,
	)
	s.mu.Unlock()
	notify()
}

// livenessLoop 活性探测：定期校对传输层连接与本地状态
// 防止传输层静默失联而状态仍停留在 connected
func (s *Session) livenessLoop(epoch uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.config.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if epoch != s.epoch {
				s.mu.Unlock()
				return
			}
			conn := s.conn
			connected := s.state == StateConnected
			s.mu.Unlock()

			if !connected {
				continue
			}
			if conn == nil {
				s.handleDisconnect(epoch, false)
				continue
			}
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("realtime liveness probe failed", "error", err)
				s.handleDisconnect(epoch, false)
			}

		case <-stop:
			return
		}
	}
}

// startLivenessLocked 启动活性探测
func (s *Session) startLivenessLocked(epoch uint64) {
	if s.livenessStop != nil {
		return
	}
	stop := make(chan struct{})
	s.livenessStop = stop
	go s.livenessLoop(epoch, stop)
}

// stopLivenessLocked 停止活性探测
func (s *Session) stopLivenessLocked() {
	if s.livenessStop != nil {
		close(s.livenessStop)
		s.livenessStop = nil
	}
}

// stopReconnectLocked 取消待执行的重连
func (s *Session) stopReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// closeConnLocked 关闭当前传输连接
func (s *Session) closeConnLocked() {
	if s.sendCh != nil {
		close(s.sendCh)
		s.sendCh = nil
	}
	if s.conn != nil {
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
		s.conn = nil
	}
}

// teardownLocked 完整拆除会话，回到 idle
func (s *Session) teardownLocked() (notify func()) {
	s.stopReconnectLocked()
	s.stopLivenessLocked()

	// 尽力通知离开包裹房间；送不到也无妨，服务端断开时会清理
	for id := range s.rooms {
		data, _ := json.Marshal(ParcelRoomPayload{ParcelID: id})
		s.trySendLocked(Envelope{Event: EventLeaveParcelRoom, Data: data})
	}

	s.closeConnLocked()
	s.rooms = make(map[string]struct{})
	s.registry.clearScoped()
	s.creds = nil
	s.attempts = 0
	s.epoch++

	return s.setStateLocked(StateIdle)
}

// trySendLocked 非阻塞入队，未连接或队列满时丢弃
func (s *Session) trySendLocked(env Envelope) {
	if s.state != StateConnected || s.sendCh == nil {
		return
	}
	select {
	case s.sendCh <- env:
	default:
		s.logger.Debug("realtime send queue full, dropping", "event", env.Event)
	}
}

// setStateLocked 切换状态，返回的函数在释放锁后调用以通知观察者
func (s *Session) setStateLocked(next State) (notify func()) {
	prev := s.state
	if prev == next {
		return func() {}
	}
	s.state = next

	fns := make([]func(old, new State), 0, len(s.stateSubs))
	for _, fn := range s.stateSubs {
		fns = append(fns, fn)
	}

	return func() {
		for _, fn := range fns {
			fn(prev, next)
		}
	}
}

// isForcedClose 判断错误是否为服务端主动踢下线
func isForcedClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == CloseCodeForcedDisconnect
	}
	return false
}
