package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/feedcache/internal/model"
	"github.com/d60-Lab/feedcache/internal/repository"
	"github.com/d60-Lab/feedcache/pkg/logger"
)

var ErrWriterClosed = errors.New("feedcache: writer closed")

// Writer 把所有缓存变更收敛到单一事务队列：同一时刻至多一个变更在执行，
// 每个入口一个事务，提交即发布触及的表集合，失败整体回滚。
// 对调用方而言入口只返回完成或失败信号，不产生数据。
type Writer struct {
	db       *gorm.DB
	tracker  *ChangeTracker
	validate *validator.Validate
	jobs     chan job
	done     chan struct{}

	// mu 串行化入队与关闭：closed 置位后不可能再有新任务进入 jobs，
	// 循环退出前排空的就是全部在途任务
	mu     sync.Mutex
	closed bool
}

type job struct {
	tables []string
	run    func(tx *gorm.DB) error
	res    chan error
}

func NewWriter(db *gorm.DB, tracker *ChangeTracker) *Writer {
	w := &Writer{
		db:       db,
		tracker:  tracker,
		validate: validator.New(),
		jobs:     make(chan job, 64),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close 停止接收新变更；在途事务执行完毕，已入队未执行的任务
// 以 ErrWriterClosed 落定
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
}

func (w *Writer) loop() {
	for {
		select {
		case j := <-w.jobs:
			err := w.db.Transaction(j.run)
			if err != nil {
				logger.Error("mutation rolled back", zap.Error(err))
			} else {
				w.tracker.Publish(j.tables...)
			}
			j.res <- err
		case <-w.done:
			// 排空剩余入队项，让等待方拿到失败信号
			for {
				select {
				case j := <-w.jobs:
					j.res <- ErrWriterClosed
				default:
					return
				}
			}
		}
	}
}

// submit 入队并等待事务落定。ctx 取消只解除等待，不中断已入队的事务。
// 入队在 mu 保护下进行：Close 之后入队必然失败，Close 之前入队的任务
// 必然被循环执行或排空，调用方总能拿到完成或失败信号。
func (w *Writer) submit(ctx context.Context, deps []string, run func(tx *gorm.DB) error) error {
	j := job{tables: deps, run: run, res: make(chan error, 1)}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	select {
	case w.jobs <- j:
		w.mu.Unlock()
	case <-ctx.Done():
		w.mu.Unlock()
		return ctx.Err()
	}
	select {
	case err := <-j.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InsertStatus upsert 单条状态（连同作者账号），按 ID 全量覆盖
func (w *Writer) InsertStatus(ctx context.Context, status *model.Status) error {
	if err := w.validate.Struct(status); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	return w.submit(ctx, tables(model.Status{}, model.Account{}), func(tx *gorm.DB) error {
		return upsertStatuses(tx, []model.Status{*status})
	})
}

// InsertTimelinePage 落一页抓取结果：upsert 时间线行与页内状态，
// 追加成员关系。页是累加的，不删既有成员；空洞标记由调用方通过
// InsertLoadMoreMarker 单独维护。
func (w *Writer) InsertTimelinePage(ctx context.Context, statuses []model.Status, tl model.Timeline) error {
	if err := w.validateStatuses(statuses); err != nil {
		return err
	}
	if err := w.validate.Struct(tl); err != nil {
		return fmt.Errorf("invalid timeline: %w", err)
	}
	deps := tables(model.Timeline{}, model.Status{}, model.Account{}, model.TimelineStatus{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		if err := upsertTimeline(tx, tl); err != nil {
			return err
		}
		if err := upsertStatuses(tx, statuses); err != nil {
			return err
		}
		if len(statuses) == 0 {
			return nil
		}
		joins := make([]model.TimelineStatus, len(statuses))
		for i, s := range statuses {
			joins[i] = model.TimelineStatus{ID: uuid.New().String(), TimelineID: tl.ID, StatusID: s.ID}
		}
		// 幂等：重复成员不报错
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&joins).Error
	})
}

// InsertLoadMoreMarker 记录时间线空洞，锚点为空洞之后紧邻的状态 ID。
// 同一锚点至多一个标记。
func (w *Writer) InsertLoadMoreMarker(ctx context.Context, tl model.Timeline, anchorStatusID string) error {
	if anchorStatusID == "" {
		return errors.New("invalid marker: empty anchor status id")
	}
	deps := tables(model.Timeline{}, model.LoadMoreMarker{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		if err := upsertTimeline(tx, tl); err != nil {
			return err
		}
		m := model.LoadMoreMarker{ID: uuid.New().String(), TimelineID: tl.ID, AnchorStatusID: anchorStatusID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
	})
}

// InsertThreadContext 落某父状态的会话上下文。两段各自精确替换：
// 新列表内的成员按位置写序号，旧集合中缺席的成员删除，不残留旧行。
func (w *Writer) InsertThreadContext(ctx context.Context, c model.ThreadContext, parentID string) error {
	if parentID == "" {
		return errors.New("invalid thread context: empty parent id")
	}
	if err := w.validateStatuses(c.Ancestors); err != nil {
		return err
	}
	if err := w.validateStatuses(c.Descendants); err != nil {
		return err
	}
	deps := tables(model.Status{}, model.Account{}, model.ThreadStatus{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		sections := []struct {
			section  model.ThreadSection
			statuses []model.Status
		}{
			{model.SectionAncestors, c.Ancestors},
			{model.SectionDescendants, c.Descendants},
		}
		for _, sec := range sections {
			if err := upsertStatuses(tx, sec.statuses); err != nil {
				return err
			}
			rows := make([]model.ThreadStatus, len(sec.statuses))
			ids := make([]string, len(sec.statuses))
			for i, s := range sec.statuses {
				rows[i] = model.ThreadStatus{
					ID:       uuid.New().String(),
					ParentID: parentID,
					Section:  sec.section,
					StatusID: s.ID,
					Idx:      i,
				}
				ids[i] = s.ID
			}
			set := repository.MembershipSet{
				ConflictCols: []string{"parent_id", "section", "status_id"},
				UpdateCols:   []string{"idx"},
				Scope:        map[string]any{"parent_id": parentID, "section": string(sec.section)},
				MemberCol:    "status_id",
			}
			if err := repository.Reconcile(tx, set, rows, ids); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertPinnedStatuses 精确替换某账号的置顶集合：新列表缺席的旧置顶删除
func (w *Writer) InsertPinnedStatuses(ctx context.Context, statuses []model.Status, accountID string) error {
	if accountID == "" {
		return errors.New("invalid pinned set: empty account id")
	}
	if err := w.validateStatuses(statuses); err != nil {
		return err
	}
	deps := tables(model.Status{}, model.Account{}, model.PinnedStatus{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		if err := upsertStatuses(tx, statuses); err != nil {
			return err
		}
		rows := make([]model.PinnedStatus, len(statuses))
		ids := make([]string, len(statuses))
		for i, s := range statuses {
			rows[i] = model.PinnedStatus{ID: uuid.New().String(), AccountID: accountID, StatusID: s.ID, Idx: i}
			ids[i] = s.ID
		}
		set := repository.MembershipSet{
			ConflictCols: []string{"account_id", "status_id"},
			UpdateCols:   []string{"idx"},
			Scope:        map[string]any{"account_id": accountID},
			MemberCol:    "status_id",
		}
		return repository.Reconcile(tx, set, rows, ids)
	})
}

// AppendListAccounts 追加列表成员，序号从当前成员数续编；
// 既有成员保持原序号不重编。
func (w *Writer) AppendListAccounts(ctx context.Context, accounts []model.Account, listID string) error {
	if listID == "" {
		return errors.New("invalid list append: empty list id")
	}
	for i := range accounts {
		if err := w.validate.Struct(&accounts[i]); err != nil {
			return fmt.Errorf("invalid account: %w", err)
		}
	}
	deps := tables(model.Account{}, model.ListAccount{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		if err := upsertAccounts(tx, accounts); err != nil {
			return err
		}
		if len(accounts) == 0 {
			return nil
		}
		var base int64
		if err := tx.Model(&model.ListAccount{}).Where("list_id = ?", listID).Count(&base).Error; err != nil {
			return err
		}
		rows := make([]model.ListAccount, len(accounts))
		for i, a := range accounts {
			rows[i] = model.ListAccount{ID: uuid.New().String(), ListID: listID, AccountID: a.ID, Idx: int(base) + i}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// SetLists 全量同步具名列表：upsert 每个列表的背书时间线行，
// 删除缺席的 list 时间线并级联其从属行。
func (w *Writer) SetLists(ctx context.Context, lists []model.List) error {
	for i := range lists {
		if err := w.validate.Struct(&lists[i]); err != nil {
			return fmt.Errorf("invalid list: %w", err)
		}
	}
	deps := tables(model.Timeline{}, model.TimelineStatus{}, model.LoadMoreMarker{}, model.ListAccount{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		rows := make([]model.Timeline, len(lists))
		ids := make([]string, len(lists))
		for i, l := range lists {
			rows[i] = l.Timeline()
			ids[i] = rows[i].ID
		}
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		var stale []model.Timeline
		q := tx.Where("kind = ?", model.KindList)
		if len(ids) > 0 {
			q = q.Where("id NOT IN ?", ids)
		}
		if err := q.Find(&stale).Error; err != nil {
			return err
		}
		for _, t := range stale {
			if err := deleteTimelineCascade(tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateList 单个列表的背书时间线 upsert
func (w *Writer) CreateList(ctx context.Context, list model.List) error {
	if err := w.validate.Struct(&list); err != nil {
		return fmt.Errorf("invalid list: %w", err)
	}
	return w.submit(ctx, tables(model.Timeline{}), func(tx *gorm.DB) error {
		return upsertTimeline(tx, list.Timeline())
	})
}

// DeleteList 删除列表及其全部从属行
func (w *Writer) DeleteList(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid list delete: empty id")
	}
	deps := tables(model.Timeline{}, model.TimelineStatus{}, model.LoadMoreMarker{}, model.ListAccount{})
	return w.submit(ctx, deps, func(tx *gorm.DB) error {
		tl := model.NewTimeline(model.KindList, id)
		return deleteTimelineCascade(tx, tl)
	})
}

// SetFilters 精确替换过滤器集合
func (w *Writer) SetFilters(ctx context.Context, filters []model.Filter) error {
	for i := range filters {
		if err := w.validate.Struct(&filters[i]); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}
	return w.submit(ctx, tables(model.Filter{}), func(tx *gorm.DB) error {
		ids := make([]string, len(filters))
		for i, f := range filters {
			ids[i] = f.ID
		}
		set := repository.MembershipSet{
			ConflictCols: []string{"id"},
			UpdateCols:   []string{"phrase", "whole_word", "contexts", "expires_at", "irreversible", "updated_at"},
			Scope:        map[string]any{},
			MemberCol:    "id",
		}
		return repository.Reconcile(tx, set, filters, ids)
	})
}

// CreateFilter 单条过滤器 upsert
func (w *Writer) CreateFilter(ctx context.Context, f model.Filter) error {
	if err := w.validate.Struct(&f); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	return w.submit(ctx, tables(model.Filter{}), func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&f).Error
	})
}

// DeleteFilter 按 ID 删除过滤器
func (w *Writer) DeleteFilter(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid filter delete: empty id")
	}
	return w.submit(ctx, tables(model.Filter{}), func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&model.Filter{}).Error
	})
}

func (w *Writer) validateStatuses(statuses []model.Status) error {
	for i := range statuses {
		if err := w.validate.Struct(&statuses[i]); err != nil {
			return fmt.Errorf("invalid status: %w", err)
		}
	}
	return nil
}

// upsertStatuses 先落作者账号再落状态，均按 ID 全量覆盖（last write wins）
func upsertStatuses(tx *gorm.DB, statuses []model.Status) error {
	accounts := make([]model.Account, 0, len(statuses))
	seen := make(map[string]struct{}, len(statuses))
	for i := range statuses {
		a := statuses[i].Account
		if a == nil {
			continue
		}
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		accounts = append(accounts, *a)
	}
	if err := upsertAccounts(tx, accounts); err != nil {
		return err
	}
	if len(statuses) == 0 {
		return nil
	}
	rows := make([]model.Status, len(statuses))
	copy(rows, statuses)
	return tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}

func upsertAccounts(tx *gorm.DB, accounts []model.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	rows := make([]model.Account, len(accounts))
	copy(rows, accounts)
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func upsertTimeline(tx *gorm.DB, tl model.Timeline) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&tl).Error
}

// deleteTimelineCascade 删除时间线行及其独占的从属行
func deleteTimelineCascade(tx *gorm.DB, tl model.Timeline) error {
	if err := tx.Where("timeline_id = ?", tl.ID).Delete(&model.TimelineStatus{}).Error; err != nil {
		return err
	}
	if err := tx.Where("timeline_id = ?", tl.ID).Delete(&model.LoadMoreMarker{}).Error; err != nil {
		return err
	}
	if tl.Kind == model.KindList {
		if err := tx.Where("list_id = ?", tl.Param).Delete(&model.ListAccount{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("id = ?", tl.ID).Delete(&model.Timeline{}).Error
}
