package utils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Minute

type memItem struct {
	data      []byte
	expiresAt time.Time
}

// Cache stores JSON blobs in redis, or in process memory without redis.
type Cache struct {
	rc  *redis.Client
	mu  sync.RWMutex
	mem map[string]memItem
}

func NewCache(rc *redis.Client) *Cache {
	return &Cache{rc: rc, mem: make(map[string]memItem)}
}

// GetBytes returns cached bytes for key.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		b, err := c.rc.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				Sugar.Debugf("cache get miss key=%s err=%v", key, err)
			}
			return nil, false
		}
		return b, true
	}
	c.mu.RLock()
	it, ok := c.mem[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(it.expiresAt) {
		return nil, false
	}
	return it.data, true
}

// GetJSON unmarshals the cached value into v.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) bool {
	b, ok := c.GetBytes(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// SetBytes stores bytes with ttl, or the default when ttl <= 0.
func (c *Cache) SetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
		return
	}
	c.mu.Lock()
	c.mem[key] = memItem{data: b, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// SetJSON marshals v and stores JSON bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if c.rc == nil {
		c.mu.Lock()
		for k := range c.mem {
			if strings.HasPrefix(k, prefix) {
				delete(c.mem, k)
			}
		}
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache invalidate scan failed prefix=%s err=%v", prefix, err)
			return
		}
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		cursor = cur
		if cursor == 0 {
			return
		}
	}
}
