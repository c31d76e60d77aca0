package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"triplink_chat/internal/service"
	apperr "triplink_chat/pkg/errors"
)

const (
	// IdentityKey gin context 中存放 *service.Identity 的鍵
	IdentityKey = "identity"
	// SessionCookie 登入後設定的 session cookie 名稱
	SessionCookie = "session"
)

// Authenticate 從 Authorization: Bearer 標頭或 session cookie 解析身分並放進 context。
// 解析失敗時不中斷請求，是否必須登入由 RequireAuth 決定。
func Authenticate(resolver *service.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(SessionCookie)
		}
		if token != "" {
			if identity := resolver.Resolve(c.Request.Context(), service.Credential{Token: token}); identity != nil {
				c.Set(IdentityKey, identity)
			}
		}
		c.Next()
	}
}

// RequireAuth 沒有已驗證身分的請求回傳 401
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": apperr.ErrUnauthenticated.Error(),
				"code":  apperr.CodeUnauthenticated,
			})
			return
		}
		c.Next()
	}
}

// CurrentIdentity 取出 Authenticate 放進 context 的身分
func CurrentIdentity(c *gin.Context) (*service.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*service.Identity)
	return identity, ok && identity != nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
