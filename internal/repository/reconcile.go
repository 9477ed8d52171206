package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipSet 描述一组受属主独占的有序成员行
type MembershipSet struct {
	// ConflictCols 成员行的复合唯一键列
	ConflictCols []string
	// UpdateCols 冲突时需要刷新的列（空则冲突直接忽略，保留旧行）
	UpdateCols []string
	// Scope 属主范围：owner key 加可选的分段判别列
	Scope map[string]any
	// MemberCol 成员 ID 列名
	MemberCol string
}

// Reconcile 让 Scope 范围内的成员行与 rows 精确一致：新集合内的成员
// 插入或按 UpdateCols 刷新（保留既有行主键），集合外的成员删除。
// keep 为新集合的成员 ID，必须与 rows 对应。只能在事务内调用，
// 失败时整个事务回滚，不会出现半更新的集合。
func Reconcile[T any](tx *gorm.DB, set MembershipSet, rows []T, keep []string) error {
	if len(rows) > 0 {
		cols := make([]clause.Column, len(set.ConflictCols))
		for i, c := range set.ConflictCols {
			cols[i] = clause.Column{Name: c}
		}
		oc := clause.OnConflict{Columns: cols}
		if len(set.UpdateCols) > 0 {
			oc.DoUpdates = clause.AssignmentColumns(set.UpdateCols)
		} else {
			oc.DoNothing = true
		}
		if err := tx.Clauses(oc).Create(&rows).Error; err != nil {
			return err
		}
	}

	var stale T
	q := tx.Where(set.Scope)
	if len(keep) > 0 {
		q = q.Where(set.MemberCol+" NOT IN ?", keep)
	} else {
		// 空集合意味着整个范围清空；补一个恒真条件满足 gorm 的
		// 全局删除保护
		q = q.Where(set.MemberCol + " IS NOT NULL")
	}
	return q.Delete(&stale).Error
}
