// app/tracker/internal/handler/ws.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lk2023060901/couriersync/app/tracker/internal/history"
	"github.com/lk2023060901/couriersync/app/tracker/internal/hub"
	"github.com/lk2023060901/couriersync/app/tracker/internal/metrics"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// HandleWS 升级 WebSocket 连接并进入事件循环
func (h *Handler) HandleWS(c *gin.Context) {
	claims, err := h.authenticate(c.Request)
	if err != nil {
		h.logger.Warn("ws handshake rejected", "ip", c.ClientIP(), "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	role := realtime.Role(claims.Role)
	if !role.Valid() {
		c.JSON(http.StatusForbidden, gin.H{"error": "unknown role"})
		return
	}

	// 握手头里的身份声明必须与令牌一致
	if id := c.GetHeader(realtime.HeaderUserID); id != "" && id != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "identity mismatch"})
		return
	}
	if r := c.GetHeader(realtime.HeaderUserRole); r != "" && r != claims.Role {
		c.JSON(http.StatusForbidden, gin.H{"error": "identity mismatch"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), claims.UserID, role, conn)
	h.hub.Register(client)
	go client.WritePump()

	if h.presence != nil {
		if err := h.presence.MarkOnline(c.Request.Context(), client.UserID, role); err != nil {
			h.logger.Warn("failed to mark online", "user_id", client.UserID, "error", err)
		}
	}

	h.readPump(client, conn)
}

// readPump 读取循环，连接断开后清理
func (h *Handler) readPump(client *hub.Client, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		if h.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.presence.MarkOffline(ctx, client.UserID); err != nil {
				h.logger.Warn("failed to mark offline", "user_id", client.UserID, "error", err)
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Debug("bad inbound frame", "user_id", client.UserID, "error", err)
			continue
		}

		metrics.EventsTotal.WithLabelValues(env.Event).Inc()
		h.route(client, env)
	}
}

// route 按事件名分发
func (h *Handler) route(client *hub.Client, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventJoinRoom:
		h.onJoinRoom(client, env.Data)
	case realtime.EventJoinParcelRoom:
		h.onJoinParcelRoom(client, env.Data)
	case realtime.EventLeaveParcelRoom:
		h.onLeaveParcelRoom(client, env.Data)
	case realtime.EventUpdateAgentLocation:
		h.onUpdateAgentLocation(client, env.Data)
	case realtime.EventUpdateParcelStatus:
		h.onUpdateParcelStatus(client, env.Data)
	default:
		h.logger.Debug("unknown event", "event", env.Event, "user_id", client.UserID)
	}
}

func (h *Handler) onJoinRoom(client *hub.Client, data json.RawMessage) {
	var p realtime.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	// 角色房间在注册时已加入，这里只做身份校验后的幂等确认
	if p.UserID != client.UserID || p.Role != client.Role {
		h.logger.Warn("join-room identity mismatch",
			"user_id", client.UserID, "claimed", p.UserID)
		return
	}
	h.hub.Join(client, hub.RoleRoom(client.Role))

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.presence.Heartbeat(ctx, client.UserID)
	}
}

func (h *Handler) onJoinParcelRoom(client *hub.Client, data json.RawMessage) {
	var p realtime.ParcelRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ParcelID == "" {
		return
	}
	h.hub.Join(client, hub.ParcelRoom(p.ParcelID))
}

func (h *Handler) onLeaveParcelRoom(client *hub.Client, data json.RawMessage) {
	var p realtime.ParcelRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ParcelID == "" {
		return
	}
	h.hub.Leave(client, hub.ParcelRoom(p.ParcelID))
}

// onUpdateAgentLocation 配送员位置上报：转发给其所在的包裹房间与管理端
func (h *Handler) onUpdateAgentLocation(client *hub.Client, data json.RawMessage) {
	if client.Role != realtime.RoleAgent {
		h.logger.Warn("location update from non-agent", "user_id", client.UserID, "role", client.Role)
		return
	}

	var p realtime.AgentLocationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}

	broadcast := realtime.AgentLocationBroadcast{
		AgentID:   client.UserID,
		Location:  p.Location,
		Timestamp: p.Timestamp,
	}
	out, err := marshalEnvelope(realtime.AgentLocationEvent(client.UserID), broadcast)
	if err != nil {
		return
	}

	for _, room := range h.hub.RoomsOf(client) {
		if room == hub.RoleRoom(client.Role) {
			continue
		}
		h.hub.Broadcast(room, out, client)
	}
	h.hub.Broadcast(hub.RoleRoom(realtime.RoleAdmin), out, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if h.presence != nil {
		_ = h.presence.UpdateLocation(ctx, client.UserID, p.Location)
		_ = h.presence.Heartbeat(ctx, client.UserID)
	}
	if h.firehose != nil {
		h.firehose.PublishAgentLocation(ctx, client.UserID, broadcast)
	}
}

// onUpdateParcelStatus 包裹状态变更：转发给包裹房间与管理端，并落库
func (h *Handler) onUpdateParcelStatus(client *hub.Client, data json.RawMessage) {
	if client.Role != realtime.RoleAgent && client.Role != realtime.RoleAdmin {
		h.logger.Warn("status update from unauthorized role", "user_id", client.UserID, "role", client.Role)
		return
	}

	var p realtime.ParcelStatusPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ParcelID == "" {
		return
	}
	if !history.ValidStatus(p.Status) {
		h.logger.Warn("invalid parcel status", "parcel_id", p.ParcelID, "status", p.Status)
		return
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}

	out, err := marshalEnvelope(realtime.EventParcelStatusChanged, p)
	if err != nil {
		return
	}
	h.hub.Broadcast(hub.ParcelRoom(p.ParcelID), out, client)
	h.hub.Broadcast(hub.RoleRoom(realtime.RoleAdmin), out, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if h.history != nil {
		if err := h.history.Record(ctx, &history.Entry{
			ParcelID:  p.ParcelID,
			Status:    p.Status,
			ActorID:   client.UserID,
			Location:  p.Location,
			CreatedAt: p.Timestamp,
		}); err != nil {
			h.logger.Error("failed to record status", "parcel_id", p.ParcelID, "error", err)
		}
	}
	if h.firehose != nil {
		h.firehose.PublishParcelStatus(ctx, client.UserID, p)
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(realtime.Envelope{Event: event, Data: data})
}
