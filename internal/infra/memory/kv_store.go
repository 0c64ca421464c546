package memory

import (
	"context"
	"sort"
	"sync"
)

// KVStore is an in-memory app.KeyValueStore. A failure can be injected to
// simulate an unavailable cache.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	err  error
}

func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

func (s *KVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *KVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// FailWith makes every subsequent call return err; nil restores the store.
func (s *KVStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Keys lists stored keys in lexical order.
func (s *KVStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
