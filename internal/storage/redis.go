package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a device namespace in one redis hash, for shared terminals
// whose state must outlive the local disk.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Storage = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, deviceID string) *RedisStore {
	return &RedisStore{client: client, key: DeviceKey(deviceID)}
}

func DeviceKey(deviceID string) string {
	return "campus:device:" + deviceID
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(ErrUnavailable, "redis hget %s: %v", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return errors.Wrapf(ErrUnavailable, "redis hset %s: %v", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		return errors.Wrapf(ErrUnavailable, "redis hdel: %v", err)
	}
	return nil
}
