package models

import (
	"time"
)

const (
	FrameTypeMessage     = "message"
	FrameTypeChatMessage = "chat_message"
)

// ChatMessage 聊天室中的一則訊息，建立後只有 IsRead 會變動
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"not null;index:idx_chat_message_room_read,priority:1" json:"room"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Sender    *User     `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	IsRead    bool      `gorm:"not null;default:false;index:idx_chat_message_room_read,priority:2" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundFrame 客戶端透過 WebSocket 送來的訊息
type InboundFrame struct {
	Type *string `json:"type"`
	Text string  `json:"text"`
}

// IsMessage 缺少 type 時視為一般訊息
func (f InboundFrame) IsMessage() bool {
	return f.Type == nil || *f.Type == FrameTypeMessage
}

// ChatMessageEvent 廣播給聊天室所有連線的訊息，REST 建立訊息時也回傳相同結構
type ChatMessageEvent struct {
	Type       string    `json:"type"`
	ID         uint      `json:"id"`
	RoomID     uint      `json:"room"`
	Text       string    `json:"text"`
	SenderID   uint      `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewChatMessageEvent 由已儲存的訊息建立廣播內容
func NewChatMessageEvent(msg *ChatMessage, senderName string) ChatMessageEvent {
	return ChatMessageEvent{
		Type:       FrameTypeChatMessage,
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		Text:       msg.Text,
		SenderID:   msg.SenderID,
		SenderName: senderName,
		CreatedAt:  msg.CreatedAt,
	}
}
