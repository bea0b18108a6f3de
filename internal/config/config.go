package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Shortener ShortenerConfig
	Sweeper   SweeperConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// CacheConfig bounds how long cache entries may diverge from the store.
type CacheConfig struct {
	PositiveTTL time.Duration // положительные записи (short_id -> URL)
	NegativeTTL time.Duration // негативные записи ("ссылки нет")
}

type ShortenerConfig struct {
	CodeLength int
}

type SweeperConfig struct {
	Interval time.Duration
}

// Значения по умолчанию для необязательных опций
const (
	DefaultPositiveTTL = 3600 * time.Second
	DefaultNegativeTTL = 300 * time.Second
	DefaultCodeLength  = 6
	DefaultSweepEvery  = 60 * time.Second
)

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("APP_BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.Password = viper.GetString("REDIS_PASSWORD")

	// Cache config - TTL задаются в секундах
	cfg.Cache.PositiveTTL = time.Duration(viper.GetInt("CACHE_TTL_SECONDS")) * time.Second
	if cfg.Cache.PositiveTTL == 0 {
		cfg.Cache.PositiveTTL = DefaultPositiveTTL
	}
	cfg.Cache.NegativeTTL = time.Duration(viper.GetInt("NEGATIVE_CACHE_TTL_SECONDS")) * time.Second
	if cfg.Cache.NegativeTTL == 0 {
		cfg.Cache.NegativeTTL = DefaultNegativeTTL
	}

	cfg.Shortener.CodeLength = viper.GetInt("SHORT_ID_LENGTH")
	if cfg.Shortener.CodeLength == 0 {
		cfg.Shortener.CodeLength = DefaultCodeLength
	}

	cfg.Sweeper.Interval = time.Duration(viper.GetInt("SWEEP_INTERVAL_SECONDS")) * time.Second
	if cfg.Sweeper.Interval == 0 {
		cfg.Sweeper.Interval = DefaultSweepEvery
	}

	return &cfg, nil
}
