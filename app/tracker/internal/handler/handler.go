// app/tracker/internal/handler/handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lk2023060901/couriersync/app/tracker/internal/firehose"
	"github.com/lk2023060901/couriersync/app/tracker/internal/history"
	"github.com/lk2023060901/couriersync/app/tracker/internal/hub"
	"github.com/lk2023060901/couriersync/app/tracker/internal/presence"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/security"
)

// Handler 实时网关的 HTTP/WebSocket 入口
type Handler struct {
	logger   logger.Logger
	jwtMgr   *security.JWTManager
	hub      *hub.Hub
	upgrader websocket.Upgrader

	// 以下组件可为 nil，对应能力降级关闭
	presence *presence.Store
	history  *history.Recorder
	firehose *firehose.Publisher
}

// Options 可选组件
type Options struct {
	Presence *presence.Store
	History  *history.Recorder
	Firehose *firehose.Publisher
}

// New 创建 Handler
func New(l logger.Logger, jwtMgr *security.JWTManager, h *hub.Hub, opts Options) *Handler {
	return &Handler{
		logger: l.Named("handler"),
		jwtMgr: jwtMgr,
		hub:    h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 网关面向独立部署的移动端和面板，不做同源限制
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		presence: opts.Presence,
		history:  opts.History,
		firehose: opts.Firehose,
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWS)
	r.GET("/healthz", h.handleHealthz)

	api := r.Group("/api")
	api.GET("/parcels/:id/history", h.handleParcelHistory)
	api.GET("/presence/:userId", h.handlePresence)
	api.POST("/sessions/:userId/disconnect", h.handleForceDisconnect)
}

func (h *Handler) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.hub.ClientCount(),
	})
}

// handleParcelHistory 查询包裹状态流转历史
func (h *Handler) handleParcelHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
		return
	}

	entries, err := h.history.Recent(c.Request.Context(), c.Param("id"), 50)
	if err != nil {
		h.logger.Error("failed to query parcel history", "parcel_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// handlePresence 查询用户在线状态
func (h *Handler) handlePresence(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "presence is disabled"})
		return
	}

	online, err := h.presence.Online(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("userId"), "online": online})
}

// handleForceDisconnect 管理端强制断开某用户的全部连接
// 被踢的客户端收到强制断开关闭码后不会自动重连
func (h *Handler) handleForceDisconnect(c *gin.Context) {
	claims, err := h.authenticate(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if claims.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	n := h.hub.KickUser(c.Param("userId"), "disconnected by administrator")
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("userId"), "disconnected": n})
}

// authenticate 校验 Authorization 头中的令牌
func (h *Handler) authenticate(r *http.Request) (*security.Claims, error) {
	return h.jwtMgr.ValidateToken(r.Header.Get("Authorization"))
}
