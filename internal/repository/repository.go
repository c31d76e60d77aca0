package repository

import (
	"context"

	"gorm.io/gorm"

	"triplink_chat/internal/storage"
)

type Repositories struct {
	User    UserRepository
	Room    RoomRepository
	Message MessageRepository

	db     *storage.Database
	limits PageLimits
}

func NewRepositories(db *storage.Database, limits PageLimits) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Room:    NewRoomRepository(db),
		Message: NewMessageRepository(db, limits),
		db:      db,
		limits:  limits,
	}
}

// WithRoomLock 開啟交易並鎖住聊天室後執行 fn，fn 收到的 repositories 都綁定在這個交易上。
// 同一聊天室的呼叫不論來自哪個程序都會依序執行，fn 回傳錯誤時整個交易回滾。
func (r *Repositories) WithRoomLock(ctx context.Context, roomID uint, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := NewRepositories(&storage.Database{DB: tx}, r.limits)
		if err := txRepos.Room.Lock(ctx, roomID); err != nil {
			return err
		}
		return fn(txRepos)
	})
}
