package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"triplink_chat/internal/api/handlers"
	"triplink_chat/internal/middleware"
	"triplink_chat/internal/service"
	"triplink_chat/pkg/config"
	apperr "triplink_chat/pkg/errors"
)

func SetupRoutes(r *gin.Engine, services *service.Services, cfg *config.Config, log zerolog.Logger) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User, int(cfg.JWT.Expiry().Seconds()), cfg.Server.Mode == gin.ReleaseMode, log)
	chatHandler := handlers.NewChatHandler(services.Chat, log)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocketManager, cfg.Server.AllowedOrigins, log)

	r.Use(middleware.Authenticate(services.Identity))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
			"code":  apperr.CodeNotFound,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket 連接點；身分驗證在升級之後進行，失敗時以 close code 回報
	r.GET("/ws/chat/:room_id", wsHandler.HandleWebSocket)

	// API 路由群組
	api := r.Group("/api")

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	chat := api.Group("/chat")
	chat.Use(middleware.RequireAuth())
	{
		rooms := chat.Group("/rooms")
		{
			rooms.GET("", chatHandler.ListRooms)
			rooms.POST("", chatHandler.CreateRoom)
			rooms.GET("/:id/messages", chatHandler.ListMessages)
			rooms.POST("/:id/messages", chatHandler.PostMessage)
			rooms.POST("/:id/read", chatHandler.MarkRead)
		}
		chat.GET("/unread", chatHandler.UnreadCount)
	}
}
