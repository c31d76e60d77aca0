package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"triplink_chat/internal/broadcast"
	"triplink_chat/internal/metrics"
	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
)

// 聊天室連線被拒絕時使用的 close code
const (
	CloseUnauthenticated = 4001
	CloseForbidden       = 4003
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultSendBuffer = 256
)

// ConnState 單一連線的生命週期
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateAuthorized
	StateRejected
	StateSubscribed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorized:
		return "authorized"
	case StateRejected:
		return "rejected"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client 代表一個聊天室的 WebSocket 連線，實作 broadcast.Subscriber
type Client struct {
	id       string
	conn     *websocket.Conn
	identity *Identity
	roomID   uint
	send     chan []byte // 消息發送通道，由 writePump 非同步寫出

	mu     sync.Mutex
	state  ConnState
	closed bool
}

func newClient(conn *websocket.Conn, roomID uint, buffer int) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		roomID: roomID,
		send:   make(chan []byte, buffer),
		state:  StateConnecting,
	}
}

func (c *Client) ID() string { return c.id }

// Deliver 將訊息放進送出佇列；佇列已滿或連線已關閉時回傳 false
func (c *Client) Deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close 關閉送出佇列，writePump 收到後送出 close frame 並結束；可重複呼叫
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.state = StateClosed
	close(c.send)
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.state = s
	}
}

// WebSocketManager 管理聊天室的 WebSocket 連線：握手後的驗證、訂閱與訊息收發
type WebSocketManager struct {
	resolver    *IdentityResolver
	rooms       repository.RoomRepository
	chat        *ChatService
	broadcaster broadcast.Broadcaster
	sendBuffer  int
	log         zerolog.Logger
}

func NewWebSocketManager(resolver *IdentityResolver, rooms repository.RoomRepository, chat *ChatService, broadcaster broadcast.Broadcaster, sendBuffer int, log zerolog.Logger) *WebSocketManager {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &WebSocketManager{
		resolver:    resolver,
		rooms:       rooms,
		chat:        chat,
		broadcaster: broadcaster,
		sendBuffer:  sendBuffer,
		log:         log.With().Str("component", "gateway").Logger(),
	}
}

// Authorize 解析身分並確認是聊天室成員；失敗時回傳對應的 close code
func (m *WebSocketManager) Authorize(ctx context.Context, cred Credential, roomID uint) (*Identity, int) {
	identity := m.resolver.Resolve(ctx, cred)
	if identity == nil {
		return nil, CloseUnauthenticated
	}
	if roomID == 0 {
		return identity, CloseForbidden
	}

	ok, err := m.rooms.IsParticipant(ctx, identity.UserID, roomID)
	if err != nil {
		m.log.Error().Err(err).Uint("room_id", roomID).Uint("user_id", identity.UserID).Msg("participant check failed")
		return identity, CloseForbidden
	}
	if !ok {
		return identity, CloseForbidden
	}
	return identity, 0
}

// HandleConnection 處理已升級的連線直到斷線。
// roomID 為 0 代表路徑中的聊天室 ID 無法解析，一律視為無權限。
func (m *WebSocketManager) HandleConnection(ctx context.Context, conn *websocket.Conn, cred Credential, roomID uint) {
	client := newClient(conn, roomID, m.sendBuffer)
	client.setState(StateAuthenticating)

	identity, code := m.Authorize(ctx, cred, roomID)
	if code != 0 {
		client.setState(StateRejected)
		m.reject(client, code)
		return
	}
	client.identity = identity
	client.setState(StateAuthorized)

	m.serve(ctx, client)
}

func (m *WebSocketManager) reject(c *Client, code int) {
	reason := "forbidden"
	if code == CloseUnauthenticated {
		reason = "unauthenticated"
	}
	metrics.WSRejected.WithLabelValues(reason).Inc()
	m.log.Info().Uint("room_id", c.roomID).Int("code", code).Msg("connection rejected")

	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
	c.Close()
}

func (m *WebSocketManager) serve(ctx context.Context, c *Client) {
	m.broadcaster.Join(c.roomID, c)
	c.setState(StateSubscribed)
	metrics.WSConnections.Inc()

	log := m.log.With().Str("client_id", c.id).Uint("room_id", c.roomID).Uint("user_id", c.identity.UserID).Logger()
	log.Info().Msg("client connected")

	// 確保連接關閉時清理資源；先離開聊天室再關閉，避免廣播送到已關閉的連線
	defer func() {
		m.broadcaster.Leave(c.roomID, c)
		c.Close()
		_ = c.conn.Close()
		metrics.WSConnections.Dec()
		log.Info().Msg("client disconnected")
	}()

	// 啟動讀寫處理
	go m.writePump(c)
	m.readPump(ctx, c, log)
}

// readPump 持續讀取客戶端送來的訊息，直到連線中斷
func (m *WebSocketManager) readPump(ctx context.Context, c *Client, log zerolog.Logger) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket unexpected close")
			}
			return
		}
		m.handleFrame(ctx, c, raw, log)
	}
}

// handleFrame 格式錯誤、非訊息類型與空白內容都直接忽略，不回應客戶端
func (m *WebSocketManager) handleFrame(ctx context.Context, c *Client, raw []byte, log zerolog.Logger) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		log.Debug().Err(err).Msg("frame dropped: malformed json")
		return
	}
	if !frame.IsMessage() {
		metrics.FramesDropped.WithLabelValues("unknown_type").Inc()
		return
	}
	if strings.TrimSpace(frame.Text) == "" {
		metrics.FramesDropped.WithLabelValues("empty").Inc()
		return
	}

	if _, err := m.chat.PostMessage(ctx, c.identity, c.roomID, frame.Text, TransportWS); err != nil {
		metrics.FramesDropped.WithLabelValues("rejected").Inc()
		log.Warn().Err(err).Msg("frame dropped: message not stored")
	}
}

// writePump 將送出佇列寫到連線，並定期送出 ping
func (m *WebSocketManager) writePump(c *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RoomClients 取得聊天室目前在線的連線數量
func (m *WebSocketManager) RoomClients(roomID uint) int {
	return m.broadcaster.Count(roomID)
}
