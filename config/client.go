package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// ClientConfig holds game server and local client configuration.
type ClientConfig struct {
	ServerKey string `json:"server_key"`
	Host      string `json:"host"`
	Port      string `json:"port"`
	UseSSL    bool   `json:"use_ssl"`
	Lang      string `json:"lang"`

	MatchModule    string `json:"match_module"`
	RefreshWindow  int    `json:"refresh_window_seconds"`
	RequestTimeout int    `json:"request_timeout_seconds"`
	PingInterval   int    `json:"ping_interval_seconds"`
	WriteTimeout   int    `json:"write_timeout_seconds"`

	ReadBufferSize  int `json:"read_buffer_size"`
	WriteBufferSize int `json:"write_buffer_size"`

	StoreDriver string `json:"store_driver"`
	StorePath   string `json:"store_path"`

	// StatusAddr enables the local status endpoint when non-empty.
	StatusAddr string `json:"status_addr"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ServerKey:       "defaultkey",
		Host:            "127.0.0.1",
		Port:            "7350",
		Lang:            "en",
		MatchModule:     "tiktaktoe",
		RefreshWindow:   30,
		RequestTimeout:  10,
		PingInterval:    15,
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		StoreDriver:     StoreFile,
		StorePath:       defaultStorePath(),
	}
}

// FromEnv loads the client configuration from environment variables.
// Falls back to defaults for any missing or malformed values.
func FromEnv() *ClientConfig {
	cfg := DefaultConfig()

	cfg.ServerKey = GetEnv("NAKAMA_KEY", cfg.ServerKey)
	cfg.Host = GetEnv("NAKAMA_HOST", cfg.Host)
	cfg.Port = GetEnv("NAKAMA_PORT", cfg.Port)
	cfg.UseSSL = GetEnv("NAKAMA_SSL", "false") == "true"
	cfg.Lang = GetEnv("TTT_LANG", cfg.Lang)
	cfg.MatchModule = GetEnv("TTT_MATCH_MODULE", cfg.MatchModule)
	cfg.RefreshWindow = getEnvInt("TTT_REFRESH_WINDOW", cfg.RefreshWindow)
	cfg.RequestTimeout = getEnvInt("TTT_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.PingInterval = getEnvInt("TTT_PING_INTERVAL", cfg.PingInterval)
	cfg.StoreDriver = GetEnv("TTT_STORE", cfg.StoreDriver)
	cfg.StorePath = GetEnv("TTT_STORE_PATH", cfg.StorePath)
	cfg.StatusAddr = GetEnv("TTT_STATUS_ADDR", cfg.StatusAddr)
	return cfg
}

// Validate reports configuration values the client cannot run with.
func (c *ClientConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch c.StoreDriver {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.RefreshWindow < 0 {
		return fmt.Errorf("refresh window must not be negative")
	}
	if c.StoreDriver == StoreFile && c.StorePath == "" {
		return fmt.Errorf("store path is required for the file store")
	}
	return nil
}

// HTTPBaseURL returns the REST API base URL, e.g. "http://127.0.0.1:7350".
func (c *ClientConfig) HTTPBaseURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, c.Host, c.Port)
}

// SocketURL returns the realtime endpoint for the given session token.
func (c *ClientConfig) SocketURL(token string) string {
	scheme := "ws"
	if c.UseSSL {
		scheme = "wss"
	}
	q := url.Values{}
	q.Set("lang", c.Lang)
	q.Set("status", "true")
	q.Set("token", token)
	return fmt.Sprintf("%s://%s:%s/ws?%s", scheme, c.Host, c.Port, q.Encode())
}

// RefreshWindowDuration is how close to expiry a session token is refreshed.
// Zero refreshes only expired tokens.
func (c *ClientConfig) RefreshWindowDuration() time.Duration {
	return time.Duration(c.RefreshWindow) * time.Second
}

// RequestTimeoutDuration bounds one REST call, the socket handshake and
// joins that have no caller context.
func (c *ClientConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// PingIntervalDuration is the keepalive period; zero disables pings.
func (c *ClientConfig) PingIntervalDuration() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// WriteTimeoutDuration bounds a single realtime write.
func (c *ClientConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// GetEnv returns the value of envVar, or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(envVar string, defaultValue int) int {
	if v, err := strconv.Atoi(GetEnv(envVar, "")); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tictactoe", "state.json")
	}
	return filepath.Join(home, ".tictactoe", "state.json")
}
