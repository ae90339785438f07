package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "utsav"
	defaultDeviceID    = "default"
	clearScanCount     = 500
)

// RedisStore is the durable tier backed by Redis. Keys are namespaced per device so
// several installs can share one Redis without seeing each other's sessions.
//
// A zero ttl stores values without expiry.
type RedisStore struct {
	redis    redis.UniversalClient
	prefix   string
	deviceID string
	ttl      time.Duration
}

// NewRedisStore creates a durable [RedisStore]. Empty prefix and deviceID fall back to
// "utsav" and "default".
func NewRedisStore(client redis.UniversalClient, prefix, deviceID string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if deviceID == "" {
		deviceID = defaultDeviceID
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:    client,
		prefix:   prefix,
		deviceID: deviceID,
		ttl:      ttl,
	}
}

func (s *RedisStore) namespace() string {
	return s.prefix + ":" + s.deviceID + ":"
}

func (s *RedisStore) key(name string) string {
	return s.namespace() + name
}

// Get retrieves the value for key. redis.Nil is reported as found=false.
//
//	Performance: 1 Redis GET.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return value, true, nil
}

// Set stores value under key with the store's TTL.
//
//	Performance: 1 Redis SET.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the given keys in a single DEL.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear removes every key in this device's namespace. On a cluster every master is
// scanned and keys are deleted one by one, since they may hash to different slots.
//
// The scan is not atomic: a key written between SCAN and DEL survives. Only the
// Service writes this namespace, so the window is not reachable in practice.
func (s *RedisStore) Clear(ctx context.Context) error {
	pattern := s.namespace() + "*"

	if cluster, ok := s.redis.(*redis.ClusterClient); ok {
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return clearMatching(ctx, node, pattern, true)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	if err := clearMatching(ctx, s.redis, pattern, false); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func clearMatching(ctx context.Context, client redis.Cmdable, pattern string, perKey bool) error {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, clearScanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if perKey {
				pipe := client.Pipeline()
				for _, k := range keys {
					pipe.Del(ctx, k)
				}
				if _, err := pipe.Exec(ctx); err != nil {
					return err
				}
			} else if err := client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

// TTL reports the remaining lifetime of key. A negative duration means the key has no
// expiry or does not exist, matching Redis PTTL semantics.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ttl, nil
}
