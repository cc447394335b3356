// app/tracker/internal/hub/client.go
package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lk2023060901/couriersync/pkg/realtime"
)

const (
	writeWait = 10 * time.Second

	// sendQueueSize 单客户端发送队列，写不动的慢客户端丢消息
	sendQueueSize = 64
)

// Client 一条已认证的客户端连接
type Client struct {
	ID     string
	UserID string
	Role   realtime.Role

	conn *websocket.Conn

	// mu 保护 send 与 closed：Close 关闭通道与 Enqueue 入队必须互斥，
	// 否则并发广播会撞上已关闭的通道
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewClient 创建客户端
func NewClient(id, userID string, role realtime.Role, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
	}
}

// WritePump 写循环，send 关闭后发出关闭帧并退出
// 每个连接只允许一个 WritePump goroutine
func (c *Client) WritePump() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Enqueue 非阻塞投递，队列满或连接已关闭返回 false
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close 停止写循环并关闭传输，重复调用无副作用
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.conn.Close()
}

// ForceDisconnect 以强制断开关闭码踢下线，客户端不会重连
func (c *Client) ForceDisconnect(reason string) {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(realtime.CloseCodeForcedDisconnect, reason),
		time.Now().Add(writeWait),
	)
	c.Close()
}
