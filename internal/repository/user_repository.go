package repository

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"triplink_chat/internal/models"
	"triplink_chat/internal/storage"
	apperr "triplink_chat/pkg/errors"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.User, error)
}

type userRepository struct {
	db *storage.Database
}

func NewUserRepository(db *storage.Database) UserRepository {
	return &userRepository{db: db}
}

// withProfiles 預先載入兩種角色的個人資料，用於顯示名稱與大頭貼
func withProfiles(db *gorm.DB) *gorm.DB {
	return db.Preload("TravelerProfile").Preload("AgentProfile")
}

// Create 建立用戶，若帶有個人資料會一併寫入
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrEmailTaken
		}
		return errors.Wrap(err, "userRepo.Create")
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := withProfiles(r.db.WithContext(ctx)).First(&user, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "userRepo.FindByID")
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := withProfiles(r.db.WithContext(ctx)).Where("email = ?", email).First(&user).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "userRepo.FindByEmail")
	}
	return &user, nil
}

// FindByIDs 批次查詢用戶，回傳以 ID 為鍵的 map，找不到的 ID 不會出現在結果中
func (r *userRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]*models.User, error) {
	users := make(map[uint]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	var found []models.User
	if err := withProfiles(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, errors.Wrap(err, "userRepo.FindByIDs")
	}
	for i := range found {
		users[found[i].ID] = &found[i]
	}
	return users, nil
}
