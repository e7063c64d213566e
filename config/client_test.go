package config

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "defaultkey", cfg.ServerKey)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "7350", cfg.Port)
	assert.False(t, cfg.UseSSL)
	assert.Equal(t, "tiktaktoe", cfg.MatchModule)
	assert.Equal(t, 30*time.Second, cfg.RefreshWindowDuration())
	assert.Equal(t, StoreFile, cfg.StoreDriver)
	assert.NotEmpty(t, cfg.StorePath)
	assert.Empty(t, cfg.StatusAddr)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("NAKAMA_KEY", "secretkey")
	t.Setenv("NAKAMA_HOST", "game.example.com")
	t.Setenv("NAKAMA_PORT", "443")
	t.Setenv("NAKAMA_SSL", "true")
	t.Setenv("TTT_MATCH_MODULE", "ttt")
	t.Setenv("TTT_REFRESH_WINDOW", "45")
	t.Setenv("TTT_STORE", "memory")
	t.Setenv("TTT_STATUS_ADDR", "127.0.0.1:7777")

	cfg := FromEnv()
	assert.Equal(t, "secretkey", cfg.ServerKey)
	assert.Equal(t, "game.example.com", cfg.Host)
	assert.Equal(t, "443", cfg.Port)
	assert.True(t, cfg.UseSSL)
	assert.Equal(t, "ttt", cfg.MatchModule)
	assert.Equal(t, 45, cfg.RefreshWindow)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "127.0.0.1:7777", cfg.StatusAddr)
	assert.Equal(t, "https://game.example.com:443", cfg.HTTPBaseURL())
}

func TestFromEnvInvalidNumbers(t *testing.T) {
	t.Setenv("TTT_REFRESH_WINDOW", "soon")
	t.Setenv("TTT_PING_INTERVAL", "-3")

	cfg := FromEnv()
	assert.Equal(t, 30, cfg.RefreshWindow)
	assert.Equal(t, 15, cfg.PingInterval)
}

func TestSocketURL(t *testing.T) {
	cfg := DefaultConfig()
	raw := cfg.SocketURL("tok en")

	assert.True(t, strings.HasPrefix(raw, "ws://127.0.0.1:7350/ws?"))
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "tok en", u.Query().Get("token"))
	assert.Equal(t, "true", u.Query().Get("status"))
	assert.Equal(t, "en", u.Query().Get("lang"))

	cfg.UseSSL = true
	assert.True(t, strings.HasPrefix(cfg.SocketURL("x"), "wss://"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = "http"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.StoreDriver = "s3"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.StorePath = ""
	assert.Error(t, cfg.Validate())

	cfg.StoreDriver = StoreMemory
	assert.NoError(t, cfg.Validate())

	cfg.RefreshWindow = -1
	assert.Error(t, cfg.Validate())
	cfg.RefreshWindow = 0
	assert.NoError(t, cfg.Validate())
}
