package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/feedcache/config"
	"github.com/d60-Lab/feedcache/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	// 测试里压低 KDF 轮数
	cfg.KDFIterations = 10
	return cfg
}

func count(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var cnt int64
	require.NoError(t, db.Model(m).Count(&cnt).Error)
	return cnt
}

func TestOpenCreatesStoreFile(t *testing.T) {
	cfg := testConfig(t)
	db, err := Open(cfg, "identity-1", "passphrase")
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(db)) }()

	_, err = os.Stat(Path(cfg, "identity-1"))
	require.NoError(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	for i := 0; i < 2; i++ {
		db, err := Open(cfg, "identity-1", "")
		require.NoError(t, err)
		require.NoError(t, Close(db))
	}
}

func TestSessionCleanPreservesListsAndFilters(t *testing.T) {
	cfg := testConfig(t)
	db, err := Open(cfg, "identity-1", "")
	require.NoError(t, err)

	// 一个会话的缓存内容 + 用户配置
	require.NoError(t, db.Create(&model.Account{ID: "a1"}).Error)
	require.NoError(t, db.Create(&model.Status{ID: "001", AccountID: "a1"}).Error)
	home := model.NewTimeline(model.KindHome, "")
	require.NoError(t, db.Create(&home).Error)
	require.NoError(t, db.Create(&model.TimelineStatus{ID: "j1", TimelineID: home.ID, StatusID: "001"}).Error)
	require.NoError(t, db.Create(&model.ListAccount{ID: "m1", ListID: "l1", AccountID: "a1", Idx: 0}).Error)

	list := model.List{ID: "l1", Title: "alpha"}.Timeline()
	require.NoError(t, db.Create(&list).Error)
	require.NoError(t, db.Create(&model.Filter{ID: "f1", Phrase: "x"}).Error)

	require.NoError(t, Close(db))
	db, err = Open(cfg, "identity-1", "")
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(db)) }()

	// 缓存内容清空
	assert.Zero(t, count(t, db, &model.Status{}))
	assert.Zero(t, count(t, db, &model.Account{}))
	assert.Zero(t, count(t, db, &model.TimelineStatus{}))
	assert.Zero(t, count(t, db, &model.ListAccount{}))

	var tls []model.Timeline
	require.NoError(t, db.Find(&tls).Error)
	require.Len(t, tls, 1)
	assert.Equal(t, model.KindList, tls[0].Kind)
	assert.Equal(t, "alpha", tls[0].Title)

	assert.EqualValues(t, 1, count(t, db, &model.Filter{}))
}

func TestDeleteRemovesExactlyOneIdentity(t *testing.T) {
	cfg := testConfig(t)
	for _, id := range []string{"identity-1", "identity-2"} {
		db, err := Open(cfg, id, "")
		require.NoError(t, err)
		require.NoError(t, Close(db))
	}

	require.NoError(t, Delete(cfg, "identity-1"))

	_, err := os.Stat(Path(cfg, "identity-1"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(Path(cfg, "identity-2"))
	assert.NoError(t, err)

	// 再删不存在的身份不报错
	require.NoError(t, Delete(cfg, "identity-1"))
}

// 更新版本写出的库原样拒绝：版本检查先于建表，一行都不动
func TestOpenRejectsNewerSchemaUntouched(t *testing.T) {
	cfg := testConfig(t)
	path := Path(cfg, "identity-1")

	raw, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, raw.Exec("PRAGMA user_version = 99").Error)
	require.NoError(t, Close(raw))

	_, err = Open(cfg, "identity-1", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "newer than supported")

	raw, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(raw)) }()

	var n int
	require.NoError(t, raw.Raw(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'statuses'",
	).Scan(&n).Error)
	assert.Zero(t, n)
}

// 密钥登记到连接 hook 而非单次下发：换口令重开后登记随之更新，
// 重建的连接拿到的总是当前密钥
func TestOpenKeysConnectionsPerStore(t *testing.T) {
	cfg := testConfig(t)

	db, err := Open(cfg, "identity-1", "passphrase")
	require.NoError(t, err)

	abs, err := filepath.Abs(Path(cfg, "identity-1"))
	require.NoError(t, err)
	keyMu.Lock()
	first := storeKeys[abs]
	keyMu.Unlock()
	require.NotEmpty(t, first)

	// 登记后常规读写照常走 hook 过的连接
	require.NoError(t, db.Create(&model.Account{ID: "a1"}).Error)
	require.NoError(t, Close(db))

	db, err = Open(cfg, "identity-1", "another")
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(db)) }()

	keyMu.Lock()
	second := storeKeys[abs]
	keyMu.Unlock()
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestInMemoryStoreMigrates(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer func() { require.NoError(t, Close(db)) }()

	exp := time.Now().Add(time.Hour)
	require.NoError(t, db.Create(&model.Filter{ID: "f1", Phrase: "x", ExpiresAt: &exp}).Error)
	assert.EqualValues(t, 1, count(t, db, &model.Filter{}))
}
