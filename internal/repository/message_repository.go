package repository

import (
	"context"
	"math"
	"strings"

	"github.com/pkg/errors"

	"triplink_chat/internal/models"
	"triplink_chat/internal/storage"
	apperr "triplink_chat/pkg/errors"
)

const (
	DefaultPageSize = 30
	MaxPageSize     = 100

	// maxOffset 頁碼換算出的位移上限，超過時直接回傳空頁
	maxOffset = math.MaxInt32
)

// PageLimits 分頁大小的預設值與上限
type PageLimits struct {
	Default int
	Max     int
}

// Clamp 將呼叫端指定的分頁大小限制在 [1, Max]，未指定時使用預設值
func (l PageLimits) Clamp(size int) int {
	def, max := l.Default, l.Max
	if def <= 0 {
		def = DefaultPageSize
	}
	if max <= 0 {
		max = MaxPageSize
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return size
}

// PageQuery 分頁條件；BeforeID 不為 0 時以訊息 ID 作為游標，否則使用頁碼（從 1 開始）
type PageQuery struct {
	Page     int
	PageSize int
	BeforeID uint
}

// MessagePage 一頁訊息，由新到舊排序
type MessagePage struct {
	Messages []models.ChatMessage
	Page     int
	PageSize int
	HasMore  bool
}

// UnreadSummary 未讀訊息總數與有未讀訊息的聊天室數量
type UnreadSummary struct {
	Total           int64 `json:"total"`
	RoomsWithUnread int64 `json:"rooms_with_unread"`
}

type MessageRepository interface {
	Append(ctx context.Context, roomID, senderID uint, text string) (*models.ChatMessage, error)
	ListPage(ctx context.Context, roomID uint, q PageQuery) (*MessagePage, error)
	MarkAllReadExcept(ctx context.Context, roomID, readerID uint) (int64, error)
	UnreadCountFor(ctx context.Context, userID uint) (UnreadSummary, error)
	LastMessages(ctx context.Context, roomIDs []uint) (map[uint]models.ChatMessage, error)
	UnreadByRoom(ctx context.Context, roomIDs []uint, userID uint) (map[uint]int64, error)
}

type messageRepository struct {
	db     *storage.Database
	limits PageLimits
}

func NewMessageRepository(db *storage.Database, limits PageLimits) MessageRepository {
	return &messageRepository{db: db, limits: limits}
}

// Append 是新增訊息的唯一寫入路徑，REST 與 WebSocket 共用
func (r *messageRepository) Append(ctx context.Context, roomID, senderID uint, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ErrEmptyMessage
	}

	msg := &models.ChatMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Text:     text,
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, errors.Wrap(err, "messageRepo.Append")
	}
	return msg, nil
}

// ListPage 由新到舊取得一頁訊息，多取一筆判斷是否還有下一頁
func (r *messageRepository) ListPage(ctx context.Context, roomID uint, q PageQuery) (*MessagePage, error) {
	size := r.limits.Clamp(q.PageSize)
	page := q.Page
	if page < 1 {
		page = 1
	}
	if q.BeforeID == 0 && page-1 > maxOffset/size {
		return &MessagePage{Page: page, PageSize: size, Messages: []models.ChatMessage{}}, nil
	}

	tx := r.db.WithContext(ctx).
		Preload("Sender.TravelerProfile").
		Preload("Sender.AgentProfile").
		Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(size + 1)
	if q.BeforeID > 0 {
		tx = tx.Where("id < ?", q.BeforeID)
	} else {
		tx = tx.Offset((page - 1) * size)
	}

	var messages []models.ChatMessage
	if err := tx.Find(&messages).Error; err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListPage")
	}

	result := &MessagePage{Page: page, PageSize: size}
	if len(messages) > size {
		result.HasMore = true
		messages = messages[:size]
	}
	result.Messages = messages
	return result, nil
}

// MarkAllReadExcept 將聊天室內不是 reader 發送的未讀訊息標記為已讀
func (r *messageRepository) MarkAllReadExcept(ctx context.Context, roomID, readerID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ? AND is_read = ? AND sender_id <> ?", roomID, false, readerID).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "messageRepo.MarkAllReadExcept")
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) UnreadCountFor(ctx context.Context, userID uint) (UnreadSummary, error) {
	var summary UnreadSummary
	err := r.db.WithContext(ctx).
		Table("chat_messages AS m").
		Select("COUNT(*) AS total, COUNT(DISTINCT m.room_id) AS rooms_with_unread").
		Joins("JOIN chat_rooms AS r ON r.id = m.room_id").
		Where("(r.traveler_id = ? OR r.agent_id = ?) AND m.is_read = ? AND m.sender_id <> ?",
			userID, userID, false, userID).
		Scan(&summary).Error
	if err != nil {
		return UnreadSummary{}, errors.Wrap(err, "messageRepo.UnreadCountFor")
	}
	return summary, nil
}

// LastMessages 取得每個聊天室最新的一則訊息，沒有訊息的聊天室不在結果中
func (r *messageRepository) LastMessages(ctx context.Context, roomIDs []uint) (map[uint]models.ChatMessage, error) {
	last := make(map[uint]models.ChatMessage, len(roomIDs))
	if len(roomIDs) == 0 {
		return last, nil
	}

	db := r.db.WithContext(ctx)
	latest := db.Model(&models.ChatMessage{}).
		Select("MAX(id)").
		Where("room_id IN ?", roomIDs).
		Group("room_id")

	var messages []models.ChatMessage
	if err := db.Where("id IN (?)", latest).Find(&messages).Error; err != nil {
		return nil, errors.Wrap(err, "messageRepo.LastMessages")
	}
	for _, m := range messages {
		last[m.RoomID] = m
	}
	return last, nil
}

func (r *messageRepository) UnreadByRoom(ctx context.Context, roomIDs []uint, userID uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RoomID uint
		Unread int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Select("room_id, COUNT(*) AS unread").
		Where("room_id IN ? AND is_read = ? AND sender_id <> ?", roomIDs, false, userID).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.UnreadByRoom")
	}
	for _, row := range rows {
		counts[row.RoomID] = row.Unread
	}
	return counts, nil
}
