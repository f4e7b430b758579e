package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	kvKeyNameTemplate = "_cartsync_kv_%s"
)

// KVStore implements ports.KVStore with plain Redis strings.
type KVStore struct {
	cli *redis.Client
}

func NewKVStore(cli *redis.Client) *KVStore {
	return &KVStore{cli: cli}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	out := s.cli.Get(ctx, getKVKeyName(key))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return "", false, nil
		}
		return "", false, out.Err()
	}
	return out.Val(), true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.cli.Set(ctx, getKVKeyName(key), value, 0).Err()
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	out := s.cli.Exists(ctx, getKVKeyName(key))
	if out.Err() != nil {
		return false, out.Err()
	}
	return out.Val() > 0, nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.cli.Del(ctx, getKVKeyName(key)).Err()
}

func getKVKeyName(key string) string {
	return fmt.Sprintf(kvKeyNameTemplate, key)
}
