// Package idcache is the session-scoped identifier cache that survives reloads.
// Entries have no TTL and a hit never proves the referenced record still exists.
package idcache

import (
	"context"
	"errors"
	"strings"
	"sync"

	"rental-process/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	KeyProcessID        = "processId"
	KeySelectedTenantID = "selectedTenantId"
	KeySelectedUnitID   = "selectedUnitId"
)

// KV is a best-effort key/value store. Reads report a miss on any failure.
type KV interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Remove(ctx context.Context, key string)
}

// RedisKV keeps one session's keys under "<namespace>:<session>:".
type RedisKV struct {
	client redis.Cmdable
	prefix string
	logger logger.Logger
}

func NewRedisKV(client redis.Cmdable, namespace, session string, log logger.Logger) *RedisKV {
	return &RedisKV{
		client: client,
		prefix: strings.Join([]string{namespace, session, ""}, ":"),
		logger: logger.ForComponent(log, "idcache").WithFields(map[string]interface{}{"session": session}),
	}
}

func (c *RedisKV) key(k string) string { return c.prefix + k }

func (c *RedisKV) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
		}
		return "", false
	}
	return val, val != ""
}

func (c *RedisKV) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}

func (c *RedisKV) Remove(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn("cache remove failed", map[string]interface{}{"key": key, "error": err})
	}
}

// MemoryKV is an in-process KV for tests and the memory store profile.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok && v != ""
}

func (m *MemoryKV) Set(_ context.Context, key, value string) {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
}

func (m *MemoryKV) Remove(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Factory builds the KV for one session.
type Factory func(session string) KV

func RedisFactory(client redis.Cmdable, namespace string, log logger.Logger) Factory {
	return func(session string) KV {
		return NewRedisKV(client, namespace, session, log)
	}
}

// MemoryFactory keeps one MemoryKV per session for the process lifetime.
func MemoryFactory() Factory {
	var mu sync.Mutex
	stores := make(map[string]*MemoryKV)
	return func(session string) KV {
		mu.Lock()
		defer mu.Unlock()
		kv, ok := stores[session]
		if !ok {
			kv = NewMemoryKV()
			stores[session] = kv
		}
		return kv
	}
}
