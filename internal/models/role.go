package models

import "fmt"

// UserRole 定義用戶角色的類型，只有下列三種值
type UserRole string

const (
	RoleTraveler UserRole = "traveler" // 旅客
	RoleAgent    UserRole = "agent"    // 旅行社代理人
	RoleAdmin    UserRole = "admin"    // 管理員
)

// ParseUserRole 將字串轉為角色，未知值回傳錯誤
func ParseUserRole(s string) (UserRole, error) {
	switch r := UserRole(s); r {
	case RoleTraveler, RoleAgent, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Counterpart 回傳聊天室中對方應有的角色；管理員不參與聊天
func (r UserRole) Counterpart() (UserRole, bool) {
	switch r {
	case RoleTraveler:
		return RoleAgent, true
	case RoleAgent:
		return RoleTraveler, true
	case RoleAdmin:
		return "", false
	default:
		return "", false
	}
}

func (r UserRole) String() string { return string(r) }
