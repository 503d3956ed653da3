package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/streamnest/chatd/internal/v1/assist"
	"github.com/streamnest/chatd/internal/v1/auth"
	"github.com/streamnest/chatd/internal/v1/logging"
	"github.com/streamnest/chatd/internal/v1/metrics"
	"github.com/streamnest/chatd/internal/v1/ratelimit"
)

// Handler upgrades HTTP requests to chat sessions. Authentication happens per
// join event, not at upgrade time, so anonymous viewers can connect.
type Handler struct {
	assist         *assist.Assistant
	broker         RoomBroker
	rateLimiter    *ratelimit.RateLimiter
	allowedOrigins []string
}

// NewHandler wires the websocket entry point.
func NewHandler(assistant *assist.Assistant, roomBroker RoomBroker, limiter *ratelimit.RateLimiter, allowedOrigins []string) *Handler {
	return &Handler{
		assist:         assistant,
		broker:         roomBroker,
		rateLimiter:    limiter,
		allowedOrigins: allowedOrigins,
	}
}

// ServeWs rate-limits by IP, validates the origin, upgrades, and starts the
// session pumps.
func (h *Handler) ServeWs(c *gin.Context) {
	if h.rateLimiter != nil && !h.rateLimiter.CheckWebSocket(c) {
		return // response already written
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			return auth.OriginAllowed(origin, h.allowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "WebSocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(conn, h.assist, h.broker)
	metrics.IncConnection()

	go session.WritePump()
	go session.Run()
	go session.ReadPump()
}
