// pkg/realtime/types.go
package realtime

// State 会话连接状态
type State int

const (
	// StateIdle 空闲：无凭证、无传输。初始状态，也是 Close 之后的终态
	StateIdle State = iota
	// StateConnecting 握手进行中
	StateConnecting
	// StateConnected 握手成功，角色房间已加入，活性探测运行中
	StateConnected
	// StateDisconnected 连接断开（握手失败或连接后掉线）
	StateDisconnected
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Role 用户角色
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Valid 检查角色是否合法
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCustomer, RoleAgent:
		return true
	default:
		return false
	}
}

// Credentials 会话凭证
type Credentials struct {
	UserID string
	Role   Role
	Token  string
}

// 握手元数据 Header
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// CloseCodeForcedDisconnect 服务端主动踢下线使用的关闭码
// 客户端视为授权已撤销，直接回到 idle，不再自动重连
const CloseCodeForcedDisconnect = 4001
