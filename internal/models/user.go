package models

import (
	"strings"

	"gorm.io/gorm"
)

// User 表示系統中的帳號，以 email 作為唯一識別
type User struct {
	gorm.Model                       // 內嵌 gorm.Model，提供 ID、CreatedAt、UpdatedAt 和 DeletedAt 字段
	Email           string           `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Password        string           `gorm:"not null" json:"-"` // bcrypt 雜湊，json 序列化時會被忽略
	Role            UserRole         `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive        bool             `gorm:"not null" json:"is_active"`
	TravelerProfile *TravelerProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AgentProfile    *AgentProfile    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TravelerProfile 旅客的個人資料
type TravelerProfile struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName       string `gorm:"size:255" json:"full_name"`
	ProfilePicture string `gorm:"size:512" json:"profile_picture"`
}

// AgentProfile 旅行社代理人的個人資料
type AgentProfile struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName       string `gorm:"size:255" json:"full_name"`
	ProfilePicture string `gorm:"size:512" json:"profile_picture"`
}

// DisplayName 取角色對應個人資料的姓名，沒有時退回 email 的 @ 前段
func (u *User) DisplayName() string {
	var name string
	switch u.Role {
	case RoleTraveler:
		if u.TravelerProfile != nil {
			name = u.TravelerProfile.FullName
		}
	case RoleAgent:
		if u.AgentProfile != nil {
			name = u.AgentProfile.FullName
		}
	case RoleAdmin:
	}

	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// AvatarPath 回傳大頭貼的相對路徑，沒有則為空字串
func (u *User) AvatarPath() string {
	switch u.Role {
	case RoleTraveler:
		if u.TravelerProfile != nil {
			return u.TravelerProfile.ProfilePicture
		}
	case RoleAgent:
		if u.AgentProfile != nil {
			return u.AgentProfile.ProfilePicture
		}
	case RoleAdmin:
	}
	return ""
}
