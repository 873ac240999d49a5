package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers revoked tokens until they would have expired.
// It uses redis when available and an in-memory map otherwise.
type TokenBlacklist struct {
	rc  *redis.Client
	mu  sync.Mutex
	mem map[string]time.Time
	now func() time.Time
}

func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, mem: make(map[string]time.Time), now: time.Now}
}

// Revoke stores token until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := b.rc.Set(ctx, "jwt:blacklist:"+token, "1", ttl).Err(); err == nil {
			return
		}
		Sugar.Warn("token blacklist: redis set failed, keeping revocation in memory")
	}
	b.mu.Lock()
	b.mem[token] = expiresAt
	b.sweepLocked()
	b.mu.Unlock()
}

// Revoked checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) Revoked(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, "jwt:blacklist:"+token).Result()
		if err == nil && n > 0 {
			return true
		}
		// fail open on redis errors, the memory fallback still applies
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.mem[token]
	if !ok {
		return false
	}
	if b.now().After(exp) {
		delete(b.mem, token)
		return false
	}
	return true
}

func (b *TokenBlacklist) sweepLocked() {
	now := b.now()
	for k, exp := range b.mem {
		if now.After(exp) {
			delete(b.mem, k)
		}
	}
}
