package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"triplink_chat/internal/middleware"
	"triplink_chat/internal/service"
)

// WebSocketHandler 處理聊天室的 WebSocket 連接
type WebSocketHandler struct {
	wsManager *service.WebSocketManager
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例；allowedOrigins 為空時不檢查 origin
func NewWebSocketHandler(wsManager *service.WebSocketManager, allowedOrigins []string, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log: log,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return lo.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}

// HandleWebSocket 先完成升級，再驗證身分與聊天室成員資格；
// 驗證失敗時以 close code 4001 或 4003 關閉連線
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已經回應了錯誤狀態
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	cred := service.Credential{Token: c.Query("token")}
	if identity, ok := middleware.CurrentIdentity(c); ok {
		cred.Session = identity
	}

	var roomID uint
	if id, err := strconv.ParseUint(c.Param("room_id"), 10, 32); err == nil {
		roomID = uint(id)
	}

	h.wsManager.HandleConnection(c.Request.Context(), conn, cred, roomID)
}
