package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"triplink_chat/internal/middleware"
	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
	"triplink_chat/internal/service"
	apperr "triplink_chat/pkg/errors"
)

// ChatHandler 處理聊天室與訊息的 REST 請求
type ChatHandler struct {
	chatService *service.ChatService
	log         zerolog.Logger
}

// NewChatHandler 創建一個新的 ChatHandler 實例
func NewChatHandler(chatService *service.ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

// CreateRoomInput 旅客帶 agent_id，代理人帶 traveler_id
type CreateRoomInput struct {
	AgentID    *uint `json:"agent_id"`
	TravelerID *uint `json:"traveler_id"`
}

// PostMessageInput 透過 REST 送出訊息
type PostMessageInput struct {
	Text string `json:"text"`
}

// ListRooms 取得目前用戶參與的聊天室
func (h *ChatHandler) ListRooms(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	rooms, err := h.chatService.ListRooms(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// CreateRoom 開啟與對方的聊天室；新建回傳 201，已存在回傳 200
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	if _, ok := identity.Role.Counterpart(); !ok {
		respondError(c, h.log, apperr.ErrRoleCannotChat)
		return
	}

	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, apperr.ErrCounterpartID)
		return
	}

	var counterpart *uint
	switch identity.Role {
	case models.RoleTraveler:
		counterpart = input.AgentID
	case models.RoleAgent:
		counterpart = input.TravelerID
	case models.RoleAdmin:
		respondError(c, h.log, apperr.ErrRoleCannotChat)
		return
	default:
		respondError(c, h.log, apperr.ErrRoleCannotChat)
		return
	}
	if counterpart == nil || *counterpart == 0 {
		respondError(c, h.log, apperr.ErrCounterpartID)
		return
	}

	room, created, err := h.chatService.CreateRoom(c.Request.Context(), identity, *counterpart)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, room)
}

// ListMessages 分頁取得聊天室的歷史訊息
func (h *ChatHandler) ListMessages(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	roomID, ok := h.roomID(c)
	if !ok {
		return
	}

	page, err := h.chatService.ListMessages(c.Request.Context(), identity, roomID, repository.PageQuery{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
		BeforeID: uint(queryInt(c, "before")),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// PostMessage 透過 REST 送出訊息，同時廣播給聊天室的在線連線
func (h *ChatHandler) PostMessage(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	roomID, ok := h.roomID(c)
	if !ok {
		return
	}

	var input PostMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, apperr.ErrEmptyMessage)
		return
	}

	event, err := h.chatService.PostMessage(c.Request.Context(), identity, roomID, input.Text, service.TransportREST)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// UnreadCount 取得所有聊天室的未讀訊息統計
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	summary, err := h.chatService.UnreadCount(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// MarkRead 將聊天室中對方的訊息標記為已讀
func (h *ChatHandler) MarkRead(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	roomID, ok := h.roomID(c)
	if !ok {
		return
	}

	marked, err := h.chatService.MarkRead(c.Request.Context(), identity, roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (h *ChatHandler) roomID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondError(c, h.log, apperr.ErrInvalidRoomID)
		return 0, false
	}
	return uint(id), true
}

// queryInt 無法解析或未提供時回傳 0，交給下層套用預設值
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
