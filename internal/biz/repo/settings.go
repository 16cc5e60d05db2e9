package repo

import "context"

// SettingsRepo is a small durable key/value table for administrative facts
type SettingsRepo interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error
}
