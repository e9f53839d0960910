package store

import (
	"context"
	"errors"
	"time"

	"github.com/pixperk/quorumlock/pkg/types"
	"github.com/redis/go-redis/v9"
)

// deletes KEYS[1] only while it still holds ARGV[1]
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisBackend speaks to one independent redis instance.
type RedisBackend struct {
	rdb redis.UniversalClient
}

func NewRedisBackend(rdb redis.UniversalClient) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

// dials a single redis instance, one per lock store
func DialRedis(addr string) *RedisBackend {
	return NewRedisBackend(redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: -1, //a lock store gets one shot per attempt
	}))
}

func (r *RedisBackend) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl > 0 {
		ttl = time.Duration(types.CeilMillis(ttl)) * time.Millisecond
	}
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisBackend) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, r.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisBackend) Increment(ctx context.Context, key string) (uint64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
