package memory

import "context"

// KVStore keeps keys in process memory. Nothing survives a restart; used by tests and by the
// storefront API for shoppers without a persistent backend.
type KVStore struct {
	data *TTL[string, string]
}

func NewKVStore() *KVStore {
	return &KVStore{data: NewTTL[string, string]()}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data.Get(key)
	return v, ok, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.data.Set(key, value, 0)
	return nil
}

func (s *KVStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.data.Get(key)
	return ok, nil
}

func (s *KVStore) Delete(_ context.Context, key string) error {
	s.data.Delete(key)
	return nil
}
