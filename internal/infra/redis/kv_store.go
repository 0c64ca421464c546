package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore keeps the local result/quiz cache in Redis, one string key per
// cache key under a common prefix. A zero TTL keeps entries forever.
type KVStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewKVStore(client *redis.Client, prefix string, ttl time.Duration) *KVStore {
	return &KVStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, s.ttlWithJitter()).Err()
}

// ttlWithJitter spreads expirations by up to 10% of the configured TTL.
func (s *KVStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
