package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/model"
)

type ThreadRepository interface {
	// ListSection 按远端展示顺序（idx 升序）返回某分段的状态
	ListSection(ctx context.Context, parentID string, section model.ThreadSection) ([]model.Status, error)
}

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository { return &threadRepository{db: db} }

func (r *threadRepository) ListSection(ctx context.Context, parentID string, section model.ThreadSection) ([]model.Status, error) {
	var res []model.Status
	err := r.db.WithContext(ctx).
		Model(&model.Status{}).
		Joins("JOIN thread_statuses ts ON ts.status_id = statuses.id").
		Where("ts.parent_id = ? AND ts.section = ?", parentID, section).
		Order("ts.idx ASC").
		Preload("Account").
		Find(&res).Error
	return res, err
}
