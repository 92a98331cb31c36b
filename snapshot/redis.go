package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots in redis, keyed by dir:name:epoch. Useful when
// worker processes run on hosts without a shared filesystem.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		}),
	}
}

func (s *RedisStore) key(dir string, epoch int, name string) string {
	return fmt.Sprintf("%s:%s:%d", dir, name, epoch)
}

func (s *RedisStore) Put(dir string, epoch int, name string, data []byte) error {
	return s.client.Set(context.Background(), s.key(dir, epoch, name), data, 0).Err()
}

func (s *RedisStore) Get(dir string, epoch int, name string) ([]byte, error) {
	data, err := s.client.Get(context.Background(), s.key(dir, epoch, name)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.key(dir, epoch, name), err)
	}
	return data, nil
}
