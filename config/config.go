package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 缓存层运行配置
type Config struct {
	// CacheDir is where per-identity store files live. The directory is
	// resolved by the embedding application; this layer only joins file
	// names onto it.
	CacheDir string `mapstructure:"cache_dir"`

	LogLevel  string `mapstructure:"log_level"`
	SentryDSN string `mapstructure:"sentry_dsn"`

	// SQLite tuning.
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"`

	// KDFIterations controls the PBKDF2 round count used to turn the
	// externally supplied passphrase into the raw SQLCipher key.
	KDFIterations int `mapstructure:"kdf_iterations"`
}

// Load 读取配置（可选 feedcache.yaml，环境变量 FEEDCACHE_* 覆盖）
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("feedcache")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("cache_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("busy_timeout_ms", 5000)
	v.SetDefault("kdf_iterations", 64000)

	v.SetEnvPrefix("FEEDCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 配置文件可缺省，其他错误直接上抛
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default 返回默认配置（测试与基准使用）
func Default() *Config {
	return &Config{
		CacheDir:      ".",
		LogLevel:      "info",
		BusyTimeoutMS: 5000,
		KDFIterations: 64000,
	}
}
