package service

import (
	"github.com/rs/zerolog"

	"triplink_chat/internal/broadcast"
	"triplink_chat/internal/repository"
	"triplink_chat/internal/utils"
	"triplink_chat/pkg/config"
)

type Services struct {
	Identity         *IdentityResolver
	User             *UserService
	Chat             *ChatService
	WebSocketManager *WebSocketManager
}

func NewServices(repos *repository.Repositories, broadcaster broadcast.Broadcaster, tokens *utils.TokenManager, cfg *config.Config, log zerolog.Logger) *Services {
	limits := repository.PageLimits{Default: cfg.Chat.PageSize, Max: cfg.Chat.MaxPageSize}

	identity := NewIdentityResolver(tokens, repos.User, log)
	chat := NewChatService(repos, broadcaster, limits, cfg.Media.BaseURL, log)
	wsManager := NewWebSocketManager(identity, repos.Room, chat, broadcaster, cfg.Chat.SendBuffer, log)

	return &Services{
		Identity:         identity,
		User:             NewUserService(repos.User, tokens),
		Chat:             chat,
		WebSocketManager: wsManager,
	}
}
