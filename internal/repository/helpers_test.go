package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"triplink_chat/internal/models"
	"triplink_chat/internal/storage"
)

func newTestDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.NewSQLiteDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, repo UserRepository, email string, role models.UserRole, fullName string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "x", Role: role, IsActive: true}
	switch role {
	case models.RoleTraveler:
		user.TravelerProfile = &models.TravelerProfile{FullName: fullName}
	case models.RoleAgent:
		user.AgentProfile = &models.AgentProfile{FullName: fullName}
	case models.RoleAdmin:
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}
