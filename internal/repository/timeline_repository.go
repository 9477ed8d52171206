package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/model"
)

type TimelineRepository interface {
	Get(ctx context.Context, id string) (*model.Timeline, error)
	// ListByKind 按标题升序返回某种类的全部时间线
	ListByKind(ctx context.Context, kind model.TimelineKind) ([]model.Timeline, error)
	// ListStatuses 按状态 ID 升序返回时间线成员（物化层按需反转）
	ListStatuses(ctx context.Context, timelineID string) ([]model.Status, error)
	// ListMarkers 按锚点升序返回时间线的空洞标记
	ListMarkers(ctx context.Context, timelineID string) ([]model.LoadMoreMarker, error)
}

type timelineRepository struct {
	db *gorm.DB
}

func NewTimelineRepository(db *gorm.DB) TimelineRepository { return &timelineRepository{db: db} }

func (r *timelineRepository) Get(ctx context.Context, id string) (*model.Timeline, error) {
	var t model.Timeline
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *timelineRepository) ListByKind(ctx context.Context, kind model.TimelineKind) ([]model.Timeline, error) {
	var res []model.Timeline
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("title ASC").
		Find(&res).Error
	return res, err
}

func (r *timelineRepository) ListStatuses(ctx context.Context, timelineID string) ([]model.Status, error) {
	var res []model.Status
	err := r.db.WithContext(ctx).
		Model(&model.Status{}).
		Joins("JOIN timeline_statuses ts ON ts.status_id = statuses.id").
		Where("ts.timeline_id = ?", timelineID).
		Order("statuses.id ASC").
		Preload("Account").
		Find(&res).Error
	return res, err
}

func (r *timelineRepository) ListMarkers(ctx context.Context, timelineID string) ([]model.LoadMoreMarker, error) {
	var res []model.LoadMoreMarker
	err := r.db.WithContext(ctx).
		Where("timeline_id = ?", timelineID).
		Order("anchor_status_id ASC").
		Find(&res).Error
	return res, err
}
