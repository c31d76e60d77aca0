package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperr "triplink_chat/pkg/errors"
)

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError 將錯誤轉換為 {"error", "code"} 回應，內部錯誤不回傳細節
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	code := apperr.CodeOf(err)
	status := statusOf(code)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		code = apperr.CodeInternal
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message, "code": code})
}
