package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes operations on one key, e.g. one (student, date).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// dayKey names the lock guarding one user's calendar day.
func dayKey(userID uint, date string) string {
	return fmt.Sprintf("day:%d:%s", userID, date)
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds
// or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	byKey map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{byKey: make(map[string]*keyedEntry)}
}

func (l *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.byKey[key]
	if !ok {
		e = &keyedEntry{}
		l.byKey[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.byKey, key)
		}
		l.mu.Unlock()
	}, nil
}

// size reports how many keys are tracked.
func (l *KeyedMutex) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker holds keys with SET NX PX so several app instances share them.
type RedisLocker struct {
	rc    *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewRedisLocker(rc *redis.Client) *RedisLocker {
	return &RedisLocker{rc: rc, ttl: 15 * time.Second, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := "lock:" + key
	token := uuid.NewString()
	for {
		ok, err := l.rc.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rc, []string{k}, token).Err()
	}, nil
}
