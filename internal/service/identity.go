package service

import (
	"context"

	"github.com/rs/zerolog"

	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
	"triplink_chat/internal/utils"
)

// Identity 已驗證的呼叫者
type Identity struct {
	UserID      uint
	Email       string
	Role        models.UserRole
	DisplayName string
}

func identityFromUser(u *models.User) *Identity {
	return &Identity{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		DisplayName: u.DisplayName(),
	}
}

// Credential 連線或請求帶來的憑證。Token 不為空時只使用 Token，
// 否則使用中間件已從 session 解析並掛在請求上的 Session。
type Credential struct {
	Token   string
	Session *Identity
}

// IdentityResolver 將憑證解析為 Identity，任何失敗都回傳 nil
type IdentityResolver struct {
	tokens *utils.TokenManager
	users  repository.UserRepository
	log    zerolog.Logger
}

func NewIdentityResolver(tokens *utils.TokenManager, users repository.UserRepository, log zerolog.Logger) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, users: users, log: log}
}

func (r *IdentityResolver) Resolve(ctx context.Context, cred Credential) *Identity {
	if cred.Token != "" {
		return r.fromToken(ctx, cred.Token)
	}
	return cred.Session
}

func (r *IdentityResolver) fromToken(ctx context.Context, token string) *Identity {
	claims, err := r.tokens.ParseToken(token)
	if err != nil {
		r.log.Debug().Err(err).Msg("token rejected")
		return nil
	}

	user, err := r.users.FindByID(ctx, claims.UserID)
	if err != nil {
		r.log.Debug().Err(err).Uint("user_id", claims.UserID).Msg("token subject not found")
		return nil
	}
	if !user.IsActive {
		return nil
	}
	return identityFromUser(user)
}
