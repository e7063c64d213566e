package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/redis/go-redis/v9"
)

// RedisConfig selects the Redis server and key namespace of a RedisStore.
// URL, when set, takes precedence over Addr, Password and DB.
type RedisConfig struct {
	URL         string
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// DefaultRedisConfig targets a local server.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:        "localhost:6379",
		Prefix:      "tictactoe:client:",
		DialTimeout: 3 * time.Second,
	}
}

// RedisConfigFromEnv reads REDIS_URL, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
// and REDIS_STORE_PREFIX over the defaults. A malformed REDIS_DB is ignored.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()
	cfg.URL = config.GetEnv("REDIS_URL", "")
	cfg.Addr = config.GetEnv("REDIS_ADDR", cfg.Addr)
	cfg.Password = config.GetEnv("REDIS_PASSWORD", cfg.Password)
	cfg.Prefix = config.GetEnv("REDIS_STORE_PREFIX", cfg.Prefix)
	if db, err := strconv.Atoi(config.GetEnv("REDIS_DB", "")); err == nil {
		cfg.DB = db
	}
	return cfg
}

// Options converts the config into go-redis client options.
func (c *RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		if c.DialTimeout > 0 {
			opts.DialTimeout = c.DialTimeout
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	}, nil
}
