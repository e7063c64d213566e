package providers

import (
	"github.com/orchestra-mcp/tictactoe/src/api"
	"github.com/orchestra-mcp/tictactoe/src/console"
	"github.com/orchestra-mcp/tictactoe/src/service"
	"github.com/orchestra-mcp/tictactoe/src/store"
)

// Compile-time interface assertions.
var (
	_ console.Controller = (*service.Service)(nil)
	_ service.API        = (*api.Client)(nil)
	_ store.Store        = (*store.FileStore)(nil)
	_ store.Store        = (*store.MemoryStore)(nil)
	_ store.Store        = (*store.RedisStore)(nil)
)
