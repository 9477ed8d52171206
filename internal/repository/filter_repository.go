package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/model"
)

type FilterRepository interface {
	ListAll(ctx context.Context) ([]model.Filter, error)
	// ListActive 过期时间为空或晚于 now 的过滤器
	ListActive(ctx context.Context, now time.Time) ([]model.Filter, error)
	// ListExpired 过期时间早于 now 的过滤器
	ListExpired(ctx context.Context, now time.Time) ([]model.Filter, error)
}

type filterRepository struct {
	db *gorm.DB
}

func NewFilterRepository(db *gorm.DB) FilterRepository { return &filterRepository{db: db} }

func (r *filterRepository) ListAll(ctx context.Context) ([]model.Filter, error) {
	var res []model.Filter
	err := r.db.WithContext(ctx).Order("id ASC").Find(&res).Error
	return res, err
}

func (r *filterRepository) ListActive(ctx context.Context, now time.Time) ([]model.Filter, error) {
	var res []model.Filter
	err := r.db.WithContext(ctx).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("id ASC").
		Find(&res).Error
	return res, err
}

func (r *filterRepository) ListExpired(ctx context.Context, now time.Time) ([]model.Filter, error) {
	var res []model.Filter
	err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("id ASC").
		Find(&res).Error
	return res, err
}
