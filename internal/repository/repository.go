// Package repository 实现持久层：gorm仓库 + 按实体的TTL缓存。
//
// 缓存约定：按id/按name的单实体读取先查缓存，未命中落库并回填；
// 列表查询不缓存；每次写入成功后立即失效相关缓存键（按id和按name）。
// 底层存储只保证单操作原子性，不提供跨实体事务。
package repository

import (
	"bytes"
	"encoding/gob"
	"strings"
	"time"

	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/metrics"
)

// CacheTTLs 各类缓存的生存期
type CacheTTLs struct {
	Entity       time.Duration // user/group/cluster
	Record       time.Duration // instance/secret
	Reachability time.Duration
}

// DefaultCacheTTLs 默认缓存生存期
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Entity:       60 * time.Second,
		Record:       30 * time.Second,
		Reachability: 60 * time.Second,
	}
}

// cacheGet 从缓存读取并反序列化实体；out 为指针
func cacheGet(c cache.Cache, kind, key string, out interface{}) bool {
	raw, ok := c.Get(key)
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
		return false
	}
	if err := gob.NewDecoder(strings.NewReader(raw)).Decode(out); err != nil {
		c.Delete(key)
		metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
		return false
	}
	metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
	return true
}

// cachePut 序列化实体写入缓存；序列化失败时跳过（缓存是尽力而为的）。
// 使用gob编码，不受API的json标签影响：json:"-" 字段（令牌、kubeconfig等）同样缓存。
func cachePut(c cache.Cache, key string, value interface{}, ttl time.Duration) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return
	}
	c.Set(key, buf.String(), ttl)
}
