package database

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/feedcache/config"
	"github.com/d60-Lab/feedcache/internal/model"
	"github.com/d60-Lab/feedcache/pkg/logger"
)

// Schema version tracking:
// 1 - baseline schema (AutoMigrate-managed tables)
const schemaVersion = 1

// Path returns the store file for an identity. One file per identity;
// the directory itself is resolved by the embedding application.
func Path(cfg *config.Config, identityID string) string {
	return filepath.Join(cfg.CacheDir, url.PathEscape(identityID)+".sqlite")
}

// Open 打开（必要时创建）某身份的持久加密库。
//
// 约束：连接池收敛到 1 个连接规避 SQLITE_BUSY，读写都经由它串行。
// key 非空时经 connect hook 对每条连接下发 PRAGMA key 启用 SQLCipher
// 加密（需链接 SQLCipher 版 libsqlite3，普通构建下该 PRAGMA 为 no-op）。
//
// 每次打开都会执行迁移与会话清理：缓存内容（时间线/状态/账号/列表
// 成员）一律丢弃重拉，用户配置（具名列表、过滤器）跨会话保留。
func Open(cfg *config.Config, identityID, key string) (*gorm.DB, error) {
	path := Path(cfg, identityID)
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		path, cfg.BusyTimeoutMS)

	var dialector gorm.Dialector = sqlite.Open(dsn)
	if key != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve store path: %w", err)
		}
		registerKeyed.Do(registerKeyedDriver)
		keyMu.Lock()
		storeKeys[abs] = deriveKey(cfg, identityID, key)
		keyMu.Unlock()
		dialector = &sqlite.Dialector{DriverName: keyedDriverName, DSN: dsn}
	}

	db, err := open(dialector)
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	if err := sessionClean(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("session clean %s: %w", path, err)
	}

	logger.Info("store opened", zap.String("identity", identityID), zap.String("path", path))
	return db, nil
}

// OpenInMemory 打开临时内存库（测试与基准）
func OpenInMemory() (*gorm.DB, error) {
	db, err := open(sqlite.Open(":memory:"))
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate in-memory store: %w", err)
	}
	return db, nil
}

// Close 关闭底层连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Delete 删除某身份的库文件（含 WAL/SHM 附属文件），仅该身份
func Delete(cfg *config.Config, identityID string) error {
	path := Path(cfg, identityID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete store %s: %w", path, err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete store %s: %w", path+suffix, err)
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		keyMu.Lock()
		delete(storeKeys, abs)
		keyMu.Unlock()
	}
	logger.Info("store deleted", zap.String("identity", identityID))
	return nil
}

func open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// join/marker 行的归属由写管道显式维护（级联删除见 writer），
		// 不依赖声明式外键
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// SQLite 单写者：收敛到一个连接
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return db, nil
}

const keyedDriverName = "sqlite3_feedcache"

var (
	registerKeyed sync.Once
	keyMu         sync.Mutex
	// storeKeys 库文件绝对路径 → raw key 十六进制
	storeKeys = map[string]string{}
)

// registerKeyedDriver 注册带 connect hook 的 sqlite 驱动。PRAGMA key
// 是连接级状态，hook 在每条新连接建立时按库文件下发密钥，连接
// 重建也不会丢。
func registerKeyedDriver() {
	sql.Register(keyedDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			keyMu.Lock()
			hexKey := storeKeys[conn.GetFilename("main")]
			keyMu.Unlock()
			if hexKey == "" {
				return nil
			}
			_, err := conn.Exec(fmt.Sprintf(`PRAGMA key = "x'%s'"`, hexKey), nil)
			return err
		},
	})
}

// deriveKey 把外部下发的口令转为 SQLCipher raw key。raw key 形式
//（x'..'）跳过 SQLCipher 自带 KDF，轮数由配置控制。
func deriveKey(cfg *config.Config, identityID, key string) string {
	derived := pbkdf2.Key([]byte(key), []byte("feedcache:"+identityID), cfg.KDFIterations, 32, sha256.New)
	return fmt.Sprintf("%X", derived)
}

// migrate 建表并推进 user_version。每步幂等，可重复执行。
// 版本检查先于任何改表动作：更新版本写出的库原样拒绝，不碰一行。
func migrate(db *gorm.DB) error {
	var version int
	if err := db.Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported %d", version, schemaVersion)
	}

	if err := db.AutoMigrate(
		&model.Account{},
		&model.Status{},
		&model.Timeline{},
		&model.TimelineStatus{},
		&model.LoadMoreMarker{},
		&model.ThreadStatus{},
		&model.PinnedStatus{},
		&model.ListAccount{},
		&model.Filter{},
	); err != nil {
		return err
	}
	if err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)).Error; err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// sessionClean 丢弃上一会话缓存的内容行，保留 list 时间线与过滤器。
// 从属 join 行随属主一并清掉。
func sessionClean(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		stmts := []string{
			"DELETE FROM timeline_statuses",
			"DELETE FROM load_more_markers",
			"DELETE FROM thread_statuses",
			"DELETE FROM pinned_statuses",
			"DELETE FROM list_accounts",
			fmt.Sprintf("DELETE FROM timelines WHERE kind != '%s'", model.KindList),
			"DELETE FROM statuses",
			"DELETE FROM accounts",
		}
		for _, s := range stmts {
			if err := tx.Exec(s).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
