package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"triplink_chat/internal/broadcast"
	"triplink_chat/internal/metrics"
	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
	apperr "triplink_chat/pkg/errors"
)

const (
	TransportREST = "rest"
	TransportWS   = "ws"

	previewLength = 100
)

// RoomView 聊天室列表的一筆資料，從呼叫者的角度描述對方
type RoomView struct {
	ID              uint      `json:"id"`
	Traveler        uint      `json:"traveler"`
	Agent           uint      `json:"agent"`
	OtherUserID     *uint     `json:"other_user_id"`
	OtherUserName   *string   `json:"other_user_name"`
	OtherUserAvatar *string   `json:"other_user_avatar"`
	LastMessage     *string   `json:"last_message"`
	LastMessageAt   time.Time `json:"last_message_at"`
	UnreadCount     int64     `json:"unread_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MessageView 歷史訊息的一筆資料
type MessageView struct {
	ID         uint      `json:"id"`
	RoomID     uint      `json:"room"`
	SenderID   uint      `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessagePage 分頁的歷史訊息，由新到舊
type MessagePage struct {
	Results  []MessageView `json:"results"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	HasMore  bool          `json:"has_more"`
}

// roomLocks 依聊天室分段的鎖，同一程序內的寫入先在這裡排隊，不必佔住資料庫連線等待列鎖
type roomLocks [64]sync.Mutex

func (l *roomLocks) lock(roomID uint) func() {
	m := &l[roomID%uint(len(l))]
	m.Lock()
	return m.Unlock
}

type ChatService struct {
	repos        *repository.Repositories
	rooms        repository.RoomRepository
	messages     repository.MessageRepository
	users        repository.UserRepository
	broadcaster  broadcast.Broadcaster
	limits       repository.PageLimits
	mediaBaseURL string
	locks        roomLocks
	log          zerolog.Logger
}

func NewChatService(repos *repository.Repositories, broadcaster broadcast.Broadcaster, limits repository.PageLimits, mediaBaseURL string, log zerolog.Logger) *ChatService {
	return &ChatService{
		repos:        repos,
		rooms:        repos.Room,
		messages:     repos.Message,
		users:        repos.User,
		broadcaster:  broadcaster,
		limits:       limits,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
		log:          log.With().Str("component", "chat").Logger(),
	}
}

// OpenRoom 取得或建立旅客與代理人的聊天室。
// 除了 REST 建立聊天室之外，接單流程也會呼叫這裡來開啟對話。
func (s *ChatService) OpenRoom(ctx context.Context, travelerID, agentID uint) (*models.ChatRoom, bool, error) {
	traveler, err := s.users.FindByID(ctx, travelerID)
	if err != nil || traveler.Role != models.RoleTraveler || !traveler.IsActive {
		return nil, false, apperr.ErrCounterpartMissing
	}
	agent, err := s.users.FindByID(ctx, agentID)
	if err != nil || agent.Role != models.RoleAgent || !agent.IsActive {
		return nil, false, apperr.ErrCounterpartMissing
	}

	return s.rooms.GetOrCreate(ctx, travelerID, agentID)
}

// CreateRoom 旅客指定代理人、或代理人指定旅客來開啟聊天室；第二個回傳值表示是否為新建
func (s *ChatService) CreateRoom(ctx context.Context, id *Identity, counterpartID uint) (*RoomView, bool, error) {
	var travelerID, agentID uint
	switch id.Role {
	case models.RoleTraveler:
		travelerID, agentID = id.UserID, counterpartID
	case models.RoleAgent:
		travelerID, agentID = counterpartID, id.UserID
	case models.RoleAdmin:
		return nil, false, apperr.ErrRoleCannotChat
	default:
		return nil, false, apperr.ErrRoleCannotChat
	}
	if counterpartID == 0 {
		return nil, false, apperr.ErrCounterpartID
	}

	room, created, err := s.OpenRoom(ctx, travelerID, agentID)
	if err != nil {
		return nil, false, err
	}

	views, err := s.roomViews(ctx, id, []models.ChatRoom{*room})
	if err != nil {
		return nil, false, err
	}
	return &views[0], created, nil
}

// ListRooms 呼叫者參與的聊天室，最近有活動的在前
func (s *ChatService) ListRooms(ctx context.Context, id *Identity) ([]RoomView, error) {
	rooms, err := s.rooms.ListForUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return s.roomViews(ctx, id, rooms)
}

func (s *ChatService) roomViews(ctx context.Context, id *Identity, rooms []models.ChatRoom) ([]RoomView, error) {
	views := make([]RoomView, 0, len(rooms))
	if len(rooms) == 0 {
		return views, nil
	}

	roomIDs := lo.Map(rooms, func(r models.ChatRoom, _ int) uint { return r.ID })
	otherIDs := lo.Uniq(lo.Map(rooms, func(r models.ChatRoom, _ int) uint { return r.OtherParticipant(id.UserID) }))

	others, err := s.users.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	last, err := s.messages.LastMessages(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	unread, err := s.messages.UnreadByRoom(ctx, roomIDs, id.UserID)
	if err != nil {
		return nil, err
	}

	for _, room := range rooms {
		view := RoomView{
			ID:            room.ID,
			Traveler:      room.TravelerID,
			Agent:         room.AgentID,
			LastMessageAt: room.UpdatedAt,
			UnreadCount:   unread[room.ID],
			CreatedAt:     room.CreatedAt,
			UpdatedAt:     room.UpdatedAt,
		}
		if other, ok := others[room.OtherParticipant(id.UserID)]; ok {
			view.OtherUserID = lo.ToPtr(other.ID)
			view.OtherUserName = lo.ToPtr(other.DisplayName())
			if avatar := s.avatarURL(other); avatar != "" {
				view.OtherUserAvatar = lo.ToPtr(avatar)
			}
		}
		if msg, ok := last[room.ID]; ok {
			view.LastMessage = lo.ToPtr(preview(msg.Text))
			view.LastMessageAt = msg.CreatedAt
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ChatService) avatarURL(u *models.User) string {
	path := u.AvatarPath()
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return s.mediaBaseURL + "/" + strings.TrimLeft(path, "/")
}

// preview 超過 100 個字元時截斷並加上 "..."
func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength]) + "..."
}

// ListMessages 非參與者拿到空的結果而不是錯誤，避免洩漏聊天室是否存在
func (s *ChatService) ListMessages(ctx context.Context, id *Identity, roomID uint, q repository.PageQuery) (*MessagePage, error) {
	empty := &MessagePage{Results: []MessageView{}, Page: max(q.Page, 1), PageSize: s.limits.Clamp(q.PageSize)}

	ok, err := s.rooms.IsParticipant(ctx, id.UserID, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return empty, nil
	}

	page, err := s.messages.ListPage(ctx, roomID, q)
	if err != nil {
		return nil, err
	}

	return &MessagePage{
		Results: lo.Map(page.Messages, func(m models.ChatMessage, _ int) MessageView {
			view := MessageView{
				ID:        m.ID,
				RoomID:    m.RoomID,
				SenderID:  m.SenderID,
				Text:      m.Text,
				IsRead:    m.IsRead,
				CreatedAt: m.CreatedAt,
			}
			if m.Sender != nil {
				view.SenderName = m.Sender.DisplayName()
			}
			return view
		}),
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	}, nil
}

// PostMessage 儲存訊息、更新聊天室活動時間並廣播給聊天室所有連線。
// REST 與 WebSocket 都經過這裡，兩者的寫入行為一致。
func (s *ChatService) PostMessage(ctx context.Context, id *Identity, roomID uint, text, transport string) (*models.ChatMessageEvent, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(id.UserID) {
		return nil, apperr.ErrNotParticipant
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyMessage
	}

	unlock := s.locks.lock(roomID)
	defer unlock()

	// 寫入與廣播都在聊天室鎖內完成，廣播順序與資料庫記錄的順序一致，跨程序也是如此
	var event models.ChatMessageEvent
	err = s.repos.WithRoomLock(ctx, roomID, func(tx *repository.Repositories) error {
		msg, err := tx.Message.Append(ctx, roomID, id.UserID, text)
		if err != nil {
			return err
		}
		if err := tx.Room.Touch(ctx, roomID, msg.CreatedAt); err != nil {
			return err
		}

		event = models.NewChatMessageEvent(msg, id.DisplayName)
		payload, err := json.Marshal(event)
		if err != nil {
			return apperr.Internal("encode chat message", err)
		}
		// 廣播失敗只影響即時通知，訊息仍會寫入，客戶端可從歷史取得
		if err := s.broadcaster.Publish(ctx, roomID, payload); err != nil {
			s.log.Error().Err(err).Uint("room_id", roomID).Uint("message_id", msg.ID).Msg("broadcast failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesPosted.WithLabelValues(transport).Inc()

	return &event, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, id *Identity) (repository.UnreadSummary, error) {
	return s.messages.UnreadCountFor(ctx, id.UserID)
}

// MarkRead 將對方在聊天室中的訊息標記為已讀，回傳這次更新的筆數
func (s *ChatService) MarkRead(ctx context.Context, id *Identity, roomID uint) (int64, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if !room.HasParticipant(id.UserID) {
		return 0, apperr.ErrNotParticipant
	}
	return s.messages.MarkAllReadExcept(ctx, roomID, id.UserID)
}
