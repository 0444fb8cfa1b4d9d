package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/go-redis/redis/v8"
)

// RedisCache Redis缓存（多实例部署共享）
type RedisCache struct {
	client *redis.Client
	// keyPrefix 隔离不同服务实例组的键空间
	keyPrefix string
}

// NewRedisCache 连接Redis并返回缓存；连接失败时返回错误，调用方降级为进程内缓存
func NewRedisCache(cfg *config.RedisConfig, keyPrefix string) (*RedisCache, error) {
	cfg.SetDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(cfg.ConnectTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		PoolSize:     cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectTimeout)*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &RedisCache{client: client, keyPrefix: keyPrefix}, nil
}

func (c *RedisCache) Get(key string) (string, bool) {
	value, err := c.client.Get(context.Background(), c.keyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(key, value string, ttl time.Duration) {
	c.client.Set(context.Background(), c.keyPrefix+key, value, ttl)
}

func (c *RedisCache) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.keyPrefix + key
	}
	c.client.Del(context.Background(), prefixed...)
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
