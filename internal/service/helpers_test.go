package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"triplink_chat/internal/broadcast"
	"triplink_chat/internal/models"
	"triplink_chat/internal/repository"
	"triplink_chat/internal/storage"
	"triplink_chat/internal/utils"
)

const testSecret = "test-secret-0123456789"

type fixture struct {
	repos    *repository.Repositories
	hub      *broadcast.Hub
	tokens   *utils.TokenManager
	resolver *IdentityResolver
	chat     *ChatService
	ws       *WebSocketManager
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.NewSQLiteDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	limits := repository.PageLimits{Default: repository.DefaultPageSize, Max: repository.MaxPageSize}
	repos := repository.NewRepositories(db, limits)
	hub := broadcast.NewHub(log)
	tokens := utils.NewTokenManager(testSecret, time.Hour)
	resolver := NewIdentityResolver(tokens, repos.User, log)
	chat := NewChatService(repos, hub, limits, "http://media.test/", log)

	return &fixture{
		repos:    repos,
		hub:      hub,
		tokens:   tokens,
		resolver: resolver,
		chat:     chat,
		ws:       NewWebSocketManager(resolver, repos.Room, chat, hub, 16, log),
		users:    NewUserService(repos.User, tokens),
	}
}

func (f *fixture) seed(t *testing.T, email string, role models.UserRole, fullName, picture string) *Identity {
	t.Helper()
	user := &models.User{Email: email, Password: "x", Role: role, IsActive: true}
	switch role {
	case models.RoleTraveler:
		user.TravelerProfile = &models.TravelerProfile{FullName: fullName, ProfilePicture: picture}
	case models.RoleAgent:
		user.AgentProfile = &models.AgentProfile{FullName: fullName, ProfilePicture: picture}
	case models.RoleAdmin:
	}
	require.NoError(t, f.repos.User.Create(context.Background(), user))
	return identityFromUser(user)
}

func (f *fixture) token(t *testing.T, id *Identity) string {
	t.Helper()
	token, err := f.tokens.GenerateToken(id.UserID, id.Role.String())
	require.NoError(t, err)
	return token
}
