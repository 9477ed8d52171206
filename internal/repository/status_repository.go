package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/model"
)

type StatusRepository interface {
	Get(ctx context.Context, id string) (*model.Status, error)
	// ListPinned 按置顶顺序（idx 升序）返回某账号的置顶状态
	ListPinned(ctx context.Context, accountID string) ([]model.Status, error)
}

type statusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) StatusRepository { return &statusRepository{db: db} }

func (r *statusRepository) Get(ctx context.Context, id string) (*model.Status, error) {
	var s model.Status
	if err := r.db.WithContext(ctx).Preload("Account").Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *statusRepository) ListPinned(ctx context.Context, accountID string) ([]model.Status, error) {
	var res []model.Status
	err := r.db.WithContext(ctx).
		Model(&model.Status{}).
		Joins("JOIN pinned_statuses ps ON ps.status_id = statuses.id").
		Where("ps.account_id = ?", accountID).
		Order("ps.idx ASC").
		Preload("Account").
		Find(&res).Error
	return res, err
}
