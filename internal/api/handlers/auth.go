package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"triplink_chat/internal/middleware"
	"triplink_chat/internal/service"
	apperr "triplink_chat/pkg/errors"
)

// AuthHandler 處理與認證相關的請求
type AuthHandler struct {
	userService   *service.UserService
	sessionMaxAge int
	secureCookie  bool
	log           zerolog.Logger
}

// NewAuthHandler 創建一個新的 AuthHandler 實例
func NewAuthHandler(userService *service.UserService, sessionMaxAge int, secureCookie bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		sessionMaxAge: sessionMaxAge,
		secureCookie:  secureCookie,
		log:           log,
	}
}

// LoginInput 定義登入請求的結構
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterInput 定義註冊請求的結構
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"required,oneof=traveler agent"`
	FullName string `json:"full_name"`
}

// Register 處理用戶註冊
func (h *AuthHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.CodeInvalidArgument})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), service.RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
		FullName: input.FullName,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
		"name":  user.DisplayName(),
	})
}

// Login 處理用戶登入，回傳 token 並同時設定 session cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.CodeInvalidArgument})
		return
	}

	user, token, err := h.userService.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, h.sessionMaxAge, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
			"name":  user.DisplayName(),
		},
	})
}
