// pkg/realtime/event.go
package realtime

import (
	"encoding/json"
	"time"
)

// 出站事件名
const (
	EventJoinRoom            = "join-room"
	EventJoinParcelRoom      = "join-parcel-room"
	EventLeaveParcelRoom     = "leave-parcel-room"
	EventUpdateAgentLocation = "update-agent-location"
	EventUpdateParcelStatus  = "update-parcel-status"
)

// 入站事件名
const (
	// EventParcelStatusChanged 包裹状态变更广播
	EventParcelStatusChanged = "updateParcelStatus"
)

// AgentLocationEvent 返回指定配送员的位置广播事件名
func AgentLocationEvent(agentID string) string {
	return "agent-location:" + agentID
}

// Envelope 事件信封，线上格式为 {"event": ..., "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LatLng 地理坐标
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationSample 单次定位读数
// 仅在信道上转发，持久化由后端负责
type LocationSample struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	CapturedAt time.Time `json:"capturedAt"`
}

// JoinRoomPayload join-room 载荷
type JoinRoomPayload struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// ParcelRoomPayload join-parcel-room / leave-parcel-room 载荷
type ParcelRoomPayload struct {
	ParcelID string `json:"parcelId"`
}

// AgentLocationPayload update-agent-location 载荷
type AgentLocationPayload struct {
	Location  LatLng    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// ParcelStatusPayload update-parcel-status 载荷
type ParcelStatusPayload struct {
	ParcelID  string    `json:"parcelId"`
	Status    string    `json:"status"`
	Location  *LatLng   `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentLocationBroadcast agent-location:<agentId> 广播载荷
type AgentLocationBroadcast struct {
	AgentID   string    `json:"agentId"`
	Location  LatLng    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}
