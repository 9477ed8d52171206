package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/feedcache/internal/model"
)

func setupRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Account{}, &model.Status{}, &model.Timeline{}, &model.TimelineStatus{},
		&model.LoadMoreMarker{}, &model.ThreadStatus{}, &model.PinnedStatus{},
		&model.ListAccount{}, &model.Filter{},
	))
	return db
}

func seedStatuses(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&model.Status{ID: id, AccountID: "a1"}).Error)
	}
}

func pinnedRows(accountID string, ids ...string) []model.PinnedStatus {
	rows := make([]model.PinnedStatus, len(ids))
	for i, id := range ids {
		rows[i] = model.PinnedStatus{ID: uuid.New().String(), AccountID: accountID, StatusID: id, Idx: i}
	}
	return rows
}

var pinnedSet = MembershipSet{
	ConflictCols: []string{"account_id", "status_id"},
	UpdateCols:   []string{"idx"},
	Scope:        map[string]any{"account_id": "a1"},
	MemberCol:    "status_id",
}

func TestReconcileExactReplace(t *testing.T) {
	db := setupRepoDB(t)
	seedStatuses(t, db, "001", "002", "003")

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, pinnedSet, pinnedRows("a1", "001", "002"), []string{"001", "002"})
	})
	require.NoError(t, err)

	// 替换：002 保留并换序号，001 删除，003 新增
	err = db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, pinnedSet, pinnedRows("a1", "003", "002"), []string{"003", "002"})
	})
	require.NoError(t, err)

	var rows []model.PinnedStatus
	require.NoError(t, db.Where("account_id = ?", "a1").Order("idx ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	require.Equal(t, "003", rows[0].StatusID)
	require.Equal(t, "002", rows[1].StatusID)
	require.Equal(t, 0, rows[0].Idx)
	require.Equal(t, 1, rows[1].Idx)
}

func TestReconcileEmptySetClearsScope(t *testing.T) {
	db := setupRepoDB(t)
	seedStatuses(t, db, "001", "002")

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, pinnedSet, pinnedRows("a1", "001", "002"), []string{"001", "002"})
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, pinnedSet, []model.PinnedStatus{}, nil)
	}))

	var cnt int64
	require.NoError(t, db.Model(&model.PinnedStatus{}).Where("account_id = ?", "a1").Count(&cnt).Error)
	require.Zero(t, cnt)
}

func TestReconcileScopedToOwner(t *testing.T) {
	db := setupRepoDB(t)
	seedStatuses(t, db, "001", "002")

	otherSet := pinnedSet
	otherSet.Scope = map[string]any{"account_id": "a2"}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, pinnedSet, pinnedRows("a1", "001"), []string{"001"})
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, otherSet, pinnedRows("a2", "002"), []string{"002"})
	}))

	// 清空 a2 不得波及 a1
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, otherSet, []model.PinnedStatus{}, nil)
	}))

	var cnt int64
	require.NoError(t, db.Model(&model.PinnedStatus{}).Where("account_id = ?", "a1").Count(&cnt).Error)
	require.EqualValues(t, 1, cnt)
}

func TestThreadSectionOrderedByIdx(t *testing.T) {
	db := setupRepoDB(t)
	require.NoError(t, db.Create(&model.Account{ID: "a1"}).Error)
	// 远端顺序与 ID 顺序相反，展示以 idx 为准
	seedStatuses(t, db, "009", "005")
	rows := []model.ThreadStatus{
		{ID: uuid.New().String(), ParentID: "p", Section: model.SectionAncestors, StatusID: "009", Idx: 0},
		{ID: uuid.New().String(), ParentID: "p", Section: model.SectionAncestors, StatusID: "005", Idx: 1},
	}
	require.NoError(t, db.Create(&rows).Error)

	got, err := NewThreadRepository(db).ListSection(context.Background(), "p", model.SectionAncestors)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "009", got[0].ID)
	require.Equal(t, "005", got[1].ID)
}

func TestListAccountsOrderedByIdx(t *testing.T) {
	db := setupRepoDB(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&model.Account{ID: fmt.Sprintf("a%d", i)}).Error)
	}
	rows := []model.ListAccount{
		{ID: uuid.New().String(), ListID: "l1", AccountID: "a2", Idx: 0},
		{ID: uuid.New().String(), ListID: "l1", AccountID: "a0", Idx: 1},
		{ID: uuid.New().String(), ListID: "l1", AccountID: "a1", Idx: 2},
	}
	require.NoError(t, db.Create(&rows).Error)

	got, err := NewListRepository(db).ListAccounts(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "a2", got[0].ID)
	require.Equal(t, "a0", got[1].ID)
	require.Equal(t, "a1", got[2].ID)
}
