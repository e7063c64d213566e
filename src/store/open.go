package store

import (
	"context"
	"fmt"

	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/rs/zerolog"
)

// Open builds the store selected by cfg.StoreDriver. A Redis store is
// pinged before use and an unreachable server is an error.
func Open(cfg *config.ClientConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreFile:
		return NewFileStore(cfg.StorePath), nil
	case config.StoreRedis:
		rs, err := NewRedisStore(RedisConfigFromEnv(), logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
