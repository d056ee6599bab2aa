package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/client-intake/internal/http/middleware"
	"github.com/ignatzorin/client-intake/internal/http/response"
	"github.com/ignatzorin/client-intake/internal/logger"
	"github.com/ignatzorin/client-intake/internal/service"
	"github.com/ignatzorin/client-intake/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений дашборда.
type WSHandler struct {
	hub      *ws.Hub
	auth     service.Authenticator
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, auth service.Authenticator, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				_, wildcard := allowed["*"]
				return ok || wildcard
			},
		},
	}
}

// Handle обслуживает GET /api/dashboard/ws. Токен берётся из cookie, заголовка или ?token=.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := middleware.TokenFromRequest(c)
	if rawToken == "" {
		rawToken = c.Query("token")
	}
	if rawToken == "" {
		response.Unauthorized(c, "токен сессии обязателен")
		return
	}

	claims, err := h.auth.Verify(c.Request.Context(), rawToken)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithComponent("ws").WithError(err).Warn("не удалось установить соединение")
		return
	}

	client := ws.NewClient(conn, h.hub, claims.ID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
