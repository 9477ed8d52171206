package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/feedcache/internal/model"
	"github.com/d60-Lab/feedcache/internal/repository"
)

// Queries 变更追踪查询入口。每个查询声明最小依赖表集合，只在触及
// 这些表的事务提交后于一致读快照内重算；与上次结果相等时不推送。
type Queries struct {
	db      *gorm.DB
	tracker *ChangeTracker
}

func NewQueries(db *gorm.DB, tracker *ChangeTracker) *Queries {
	return &Queries{db: db, tracker: tracker}
}

// snapshot 在只读事务内求值，保证看到一致的时间点视图
func (q *Queries) snapshot(fn func(tx *gorm.DB) error) error {
	return q.db.Transaction(fn)
}

// ObserveTimeline 订阅时间线物化视图
func (q *Queries) ObserveTimeline(tl model.Timeline) *Observation[TimelineView] {
	deps := tables(
		model.Timeline{}, model.TimelineStatus{}, model.LoadMoreMarker{},
		model.Status{}, model.Account{}, model.Filter{},
	)
	if tl.Kind == model.KindProfileStatuses {
		deps = append(deps, model.PinnedStatus{}.TableName())
	}
	return observe(q.tracker, deps, func() (TimelineView, error) {
		var view TimelineView
		err := q.snapshot(func(tx *gorm.DB) error {
			var err error
			view, err = buildTimelineView(context.Background(), tx, tl, time.Now())
			return err
		})
		return view, err
	})
}

// ObserveThread 订阅某父状态的会话视图
func (q *Queries) ObserveThread(parentID string) *Observation[ThreadView] {
	deps := tables(model.Status{}, model.Account{}, model.ThreadStatus{}, model.Filter{})
	return observe(q.tracker, deps, func() (ThreadView, error) {
		var view ThreadView
		err := q.snapshot(func(tx *gorm.DB) error {
			var err error
			view, err = buildThreadView(context.Background(), tx, parentID, time.Now())
			return err
		})
		return view, err
	})
}

// ObserveLists 订阅具名列表集合，按标题升序
func (q *Queries) ObserveLists() *Observation[[]model.Timeline] {
	deps := tables(model.Timeline{})
	return observe(q.tracker, deps, func() ([]model.Timeline, error) {
		var lists []model.Timeline
		err := q.snapshot(func(tx *gorm.DB) error {
			var err error
			lists, err = repository.NewTimelineRepository(tx).ListByKind(context.Background(), model.KindList)
			return err
		})
		return lists, err
	})
}

// ObserveListAccounts 订阅列表成员，按成员序号升序
func (q *Queries) ObserveListAccounts(listID string) *Observation[[]model.Account] {
	deps := tables(model.Account{}, model.ListAccount{})
	return observe(q.tracker, deps, func() ([]model.Account, error) {
		var accounts []model.Account
		err := q.snapshot(func(tx *gorm.DB) error {
			var err error
			accounts, err = repository.NewListRepository(tx).ListAccounts(context.Background(), listID)
			return err
		})
		return accounts, err
	})
}

// ObserveActiveFilters 订阅相对 now 生效的过滤器。参考时间固定在订阅时，
// 要看到过期翻转需带新的 now 重新订阅。
func (q *Queries) ObserveActiveFilters(now time.Time) *Observation[[]model.Filter] {
	return q.observeFilters(func(ctx context.Context, r repository.FilterRepository) ([]model.Filter, error) {
		return r.ListActive(ctx, now)
	})
}

// ObserveExpiredFilters 订阅相对 now 已过期的过滤器
func (q *Queries) ObserveExpiredFilters(now time.Time) *Observation[[]model.Filter] {
	return q.observeFilters(func(ctx context.Context, r repository.FilterRepository) ([]model.Filter, error) {
		return r.ListExpired(ctx, now)
	})
}

func (q *Queries) observeFilters(list func(context.Context, repository.FilterRepository) ([]model.Filter, error)) *Observation[[]model.Filter] {
	deps := tables(model.Filter{})
	return observe(q.tracker, deps, func() ([]model.Filter, error) {
		var filters []model.Filter
		err := q.snapshot(func(tx *gorm.DB) error {
			var err error
			filters, err = list(context.Background(), repository.NewFilterRepository(tx))
			return err
		})
		return filters, err
	})
}
