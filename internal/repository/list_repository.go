package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/model"
)

type ListRepository interface {
	// ListAccounts 按成员序号升序返回列表成员账号
	ListAccounts(ctx context.Context, listID string) ([]model.Account, error)
	// CountMembers 当前成员数（append 续编序号用）
	CountMembers(ctx context.Context, listID string) (int64, error)
}

type listRepository struct {
	db *gorm.DB
}

func NewListRepository(db *gorm.DB) ListRepository { return &listRepository{db: db} }

func (r *listRepository) ListAccounts(ctx context.Context, listID string) ([]model.Account, error) {
	var res []model.Account
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Joins("JOIN list_accounts la ON la.account_id = accounts.id").
		Where("la.list_id = ?", listID).
		Order("la.idx ASC").
		Find(&res).Error
	return res, err
}

func (r *listRepository) CountMembers(ctx context.Context, listID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.ListAccount{}).
		Where("list_id = ?", listID).
		Count(&cnt).Error
	return cnt, err
}
