package models

import (
	"time"
)

// ChatRoom 旅客與代理人之間唯一的一對一聊天室
type ChatRoom struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	TravelerID uint          `gorm:"not null;uniqueIndex:idx_chat_room_pair,priority:1" json:"traveler"`
	AgentID    uint          `gorm:"not null;uniqueIndex:idx_chat_room_pair,priority:2;index" json:"agent"`
	Traveler   *User         `gorm:"foreignKey:TravelerID;constraint:OnDelete:CASCADE" json:"-"`
	Agent      *User         `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	Messages   []ChatMessage `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `gorm:"index" json:"updated_at"` // 最後活動時間，每則新訊息都會更新
}

// HasParticipant 判斷用戶是否為聊天室的旅客或代理人
func (r *ChatRoom) HasParticipant(userID uint) bool {
	return userID != 0 && (r.TravelerID == userID || r.AgentID == userID)
}

// OtherParticipant 回傳對方的用戶 ID，非參與者回傳 0
func (r *ChatRoom) OtherParticipant(userID uint) uint {
	switch userID {
	case r.TravelerID:
		return r.AgentID
	case r.AgentID:
		return r.TravelerID
	default:
		return 0
	}
}
