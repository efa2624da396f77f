package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"savdopos/backend/internal/domain"
)

type RedisPermissionCache struct {
	client *redis.Client
}

func NewRedisPermissionCache(addr string, password string, db int) *RedisPermissionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPermissionCache{client: client}
}

func (c *RedisPermissionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPermissionCache) Close() error {
	return c.client.Close()
}

func (c *RedisPermissionCache) Get(ctx context.Context, key string) ([]domain.Permission, bool, error) {
	val, err := c.client.Get(ctx, "perm:"+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var perms []domain.Permission
	if err := json.Unmarshal([]byte(val), &perms); err != nil {
		return nil, false, err
	}
	return perms, true, nil
}

func (c *RedisPermissionCache) Set(ctx context.Context, key string, value []domain.Permission, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "perm:"+key, payload, ttl).Err()
}

func (c *RedisPermissionCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, "perm:"+key).Err()
}
