package dal

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKV 引擎侧键值接口的 redis 实现：幂等占位、调度锁、订单快照缓存
type RedisKV struct {
	cli *redis.Client
}

func NewRedisKV(cli *redis.Client) *RedisKV {
	return &RedisKV{cli: cli}
}

func (r *RedisKV) SetNX(ctx context.Context, key, val string, ttl time.Duration) (bool, error) {
	return r.cli.SetNX(ctx, key, val, ttl).Result()
}

// Get 不存在返回空串，不作为错误
func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return r.cli.Set(ctx, key, val, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.cli.Del(ctx, key).Err()
}
