package ports

import "context"

// KVStore is the persistent string key-value storage the engine keeps its session and cart hints in.
// Get MUST return ("", false, nil) for an absent key.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
