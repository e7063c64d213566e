package store

import "context"

// Keys of the values the client persists between runs.
const (
	KeyDeviceID     = "device-id"
	KeyToken        = "session-token"
	KeyRefreshToken = "session-refresh-token"
)

// Store defines durable key/value persistence for client credentials.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases any resources held by the store.
	Close() error
}
