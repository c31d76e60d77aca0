package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"triplink_chat/internal/models"
	"triplink_chat/internal/storage"
	apperr "triplink_chat/pkg/errors"
)

type RoomRepository interface {
	GetOrCreate(ctx context.Context, travelerID, agentID uint) (*models.ChatRoom, bool, error)
	FindByID(ctx context.Context, id uint) (*models.ChatRoom, error)
	ListForUser(ctx context.Context, userID uint) ([]models.ChatRoom, error)
	Touch(ctx context.Context, roomID uint, at time.Time) error
	IsParticipant(ctx context.Context, userID, roomID uint) (bool, error)
	Lock(ctx context.Context, roomID uint) error
}

type roomRepository struct {
	db *storage.Database
}

func NewRoomRepository(db *storage.Database) RoomRepository {
	return &roomRepository{db: db}
}

// GetOrCreate 以 (traveler_id, agent_id) 唯一索引做單一語句的 upsert，
// 第二個回傳值表示這次呼叫是否真的新增了聊天室
func (r *roomRepository) GetOrCreate(ctx context.Context, travelerID, agentID uint) (*models.ChatRoom, bool, error) {
	room := models.ChatRoom{TravelerID: travelerID, AgentID: agentID}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "traveler_id"}, {Name: "agent_id"}},
			DoNothing: true,
		}).
		Create(&room)
	if res.Error != nil {
		return nil, false, errors.Wrap(res.Error, "roomRepo.GetOrCreate.Insert")
	}
	if res.RowsAffected == 1 {
		return &room, true, nil
	}

	var existing models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("traveler_id = ? AND agent_id = ?", travelerID, agentID).
		First(&existing).Error
	if err != nil {
		return nil, false, errors.Wrap(err, "roomRepo.GetOrCreate.Select")
	}
	return &existing, false, nil
}

func (r *roomRepository) FindByID(ctx context.Context, id uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRoomNotFound
		}
		return nil, errors.Wrap(err, "roomRepo.FindByID")
	}
	return &room, nil
}

// ListForUser 查詢用戶參與的所有聊天室，最近有活動的在前
func (r *roomRepository) ListForUser(ctx context.Context, userID uint) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("traveler_id = ? OR agent_id = ?", userID, userID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, "roomRepo.ListForUser")
	}
	return rooms, nil
}

// Touch 更新最後活動時間，時間只會往前推進
func (r *roomRepository) Touch(ctx context.Context, roomID uint, at time.Time) error {
	at = at.UTC()
	err := r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ? AND updated_at < ?", roomID, at).
		UpdateColumn("updated_at", at).Error
	if err != nil {
		return errors.Wrap(err, "roomRepo.Touch")
	}
	return nil
}

func (r *roomRepository) IsParticipant(ctx context.Context, userID, roomID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ? AND (traveler_id = ? OR agent_id = ?)", roomID, userID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "roomRepo.IsParticipant")
	}
	return count > 0, nil
}

// Lock 在目前的交易中鎖住聊天室，直到交易結束。
// postgres 使用 SELECT ... FOR UPDATE 鎖住該列；sqlite 沒有列鎖，交易以 BEGIN IMMEDIATE 開始時已取得寫入鎖。
func (r *roomRepository) Lock(ctx context.Context, roomID uint) error {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var room models.ChatRoom
	if err := q.Select("id").First(&room, roomID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrRoomNotFound
		}
		return errors.Wrap(err, "roomRepo.Lock")
	}
	return nil
}
