// app/tracker/internal/hub/hub.go
package hub

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/couriersync/app/tracker/internal/metrics"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// 房间命名约定
const (
	roleRoomPrefix   = "role:"
	parcelRoomPrefix = "parcel:"
)

// RoleRoom 角色房间名
func RoleRoom(role realtime.Role) string {
	return roleRoomPrefix + string(role)
}

// ParcelRoom 包裹房间名
func ParcelRoom(parcelID string) string {
	return parcelRoomPrefix + parcelID
}

// Hub 管理连接与房间成员关系，广播经由协程池派发
type Hub struct {
	logger logger.Logger
	pool   *ants.Pool

	mu          sync.RWMutex
	clients     map[string]*Client   // key: client ID
	byUser      map[string][]*Client // key: user ID，一个用户可能多端在线
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
}

// New 创建 Hub，poolSize 为广播协程池大小
func New(l logger.Logger, poolSize int) (*Hub, error) {
	if poolSize <= 0 {
		poolSize = 1024
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Hub{
		logger:      l.Named("hub"),
		pool:        pool,
		clients:     make(map[string]*Client),
		byUser:      make(map[string][]*Client),
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
	}, nil
}

// Register 注册连接并加入其角色房间
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.byUser[c.UserID] = append(h.byUser[c.UserID], c)
	h.joinLocked(c, RoleRoom(c.Role))
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	h.logger.Info("client registered", "client_id", c.ID, "user_id", c.UserID, "role", c.Role)
}

// Unregister 注销连接并清理其全部房间成员关系
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	conns := h.byUser[c.UserID]
	for i, conn := range conns {
		if conn == c {
			h.byUser[c.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.byUser[c.UserID]) == 0 {
		delete(h.byUser, c.UserID)
	}

	for room := range h.clientRooms[c] {
		h.leaveLocked(c, room)
	}
	delete(h.clientRooms, c)
	h.mu.Unlock()

	metrics.ConnectionsActive.Dec()
	c.Close()
	h.logger.Info("client unregistered", "client_id", c.ID, "user_id", c.UserID)
}

// Join 将连接加入房间，重复加入无副作用
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	h.joinLocked(c, room)
	h.mu.Unlock()
}

// Leave 将连接移出房间
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	joined, ok := h.clientRooms[c]
	if !ok {
		joined = make(map[string]struct{})
		h.clientRooms[c] = joined
	}
	joined[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.clientRooms[c]; ok {
		delete(joined, room)
	}
}

// RoomsOf 返回连接当前加入的全部房间
func (h *Hub) RoomsOf(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.clientRooms[c]))
	for room := range h.clientRooms[c] {
		rooms = append(rooms, room)
	}
	return rooms
}

// Broadcast 向房间内全部成员派发消息，sender 非空时跳过发送者本人
func (h *Hub) Broadcast(room string, data []byte, sender *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c == sender {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(roomKind(room)).Inc()

	task := func() {
		for _, c := range members {
			if !c.Enqueue(data) {
				h.logger.Warn("send queue full, dropping broadcast",
					"client_id", c.ID, "room", room)
			}
		}
	}
	if err := h.pool.Submit(task); err != nil {
		// 协程池满时退化为同步派发
		task()
	}
}

// KickUser 强制断开某用户的全部连接，返回断开的连接数
func (h *Hub) KickUser(userID, reason string) int {
	h.mu.RLock()
	conns := append([]*Client(nil), h.byUser[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		c.ForceDisconnect(reason)
		metrics.ForcedDisconnectsTotal.Inc()
	}
	h.logger.Info("user kicked", "user_id", userID, "connections", len(conns))
	return len(conns)
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize 房间成员数
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close 释放协程池
func (h *Hub) Close() error {
	h.pool.Release()
	return nil
}

func roomKind(room string) string {
	switch {
	case len(room) > len(roleRoomPrefix) && room[:len(roleRoomPrefix)] == roleRoomPrefix:
		return "role"
	case len(room) > len(parcelRoomPrefix) && room[:len(parcelRoomPrefix)] == parcelRoomPrefix:
		return "parcel"
	default:
		return "other"
	}
}
