package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
	"triplink_chat/internal/utils"
	apperr "triplink_chat/pkg/errors"
)

var errInvalidCredentials = apperr.Unauthorized("invalid email or password")

type UserService struct {
	userRepo repository.UserRepository
	tokens   *utils.TokenManager
}

func NewUserService(userRepo repository.UserRepository, tokens *utils.TokenManager) *UserService {
	return &UserService{userRepo: userRepo, tokens: tokens}
}

// RegisterInput 註冊帳號所需資料
type RegisterInput struct {
	Email    string
	Password string
	Role     string
	FullName string
}

// Register 建立旅客或代理人帳號與對應的個人資料；管理員帳號不開放註冊
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role, err := models.ParseUserRole(in.Role)
	if err != nil {
		return nil, apperr.ErrInvalidRole
	}

	// 對密碼進行加密
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.ErrPasswordTooLong
	}
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: string(hashed),
		Role:     role,
		IsActive: true,
	}
	switch role {
	case models.RoleTraveler:
		user.TravelerProfile = &models.TravelerProfile{FullName: in.FullName}
	case models.RoleAgent:
		user.AgentProfile = &models.AgentProfile{FullName: in.FullName}
	case models.RoleAdmin:
		return nil, apperr.ErrInvalidRole
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 驗證帳號密碼並簽發 token
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, "", errInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", errInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", errInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role.String())
	if err != nil {
		return nil, "", apperr.Internal("generate token", err)
	}
	return user, token, nil
}
