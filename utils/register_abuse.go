package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistrationGuard throttles account creation per client IP: a cooldown
// between attempts and a cap on successful registrations per day. State
// lives in redis when configured, in memory otherwise. Redis errors fail open.
type RegistrationGuard struct {
	rc       *redis.Client
	cooldown time.Duration
	perDay   int
	now      func() time.Time

	mu       sync.Mutex
	lastTry  map[string]time.Time
	dayCount map[string]int
}

func NewRegistrationGuard(rc *redis.Client, cooldown time.Duration, perDay int) *RegistrationGuard {
	return &RegistrationGuard{
		rc:       rc,
		cooldown: cooldown,
		perDay:   perDay,
		now:      time.Now,
		lastTry:  make(map[string]time.Time),
		dayCount: make(map[string]int),
	}
}

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

// Allow reports whether ip may attempt a registration now. A true result
// starts the cooldown window.
func (g *RegistrationGuard) Allow(ctx context.Context, ip string) bool {
	if g == nil {
		return true
	}
	day := g.now().Format("20060102")
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if g.perDay > 0 {
			n, err := g.rc.Get(ctx, regKey("succday", ip, day)).Int()
			if err == nil && n >= g.perDay {
				return false
			}
		}
		if g.cooldown <= 0 {
			return true
		}
		ok, err := g.rc.SetNX(ctx, regKey("cooldown", ip), "1", g.cooldown).Result()
		if err != nil {
			return true
		}
		return ok
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.perDay > 0 && g.dayCount[ip+"|"+day] >= g.perDay {
		return false
	}
	if g.cooldown > 0 {
		if last, ok := g.lastTry[ip]; ok && g.now().Sub(last) < g.cooldown {
			return false
		}
		g.lastTry[ip] = g.now()
	}
	return true
}

// Succeeded counts a completed registration toward today's cap.
func (g *RegistrationGuard) Succeeded(ctx context.Context, ip string) {
	if g == nil || g.perDay <= 0 {
		return
	}
	now := g.now()
	day := now.Format("20060102")
	if g.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		key := regKey("succday", ip, day)
		if err := g.rc.Incr(ctx, key).Err(); err == nil {
			_ = g.rc.Expire(ctx, key, 24*time.Hour).Err()
		}
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.dayCount {
		if !strings.HasSuffix(k, "|"+day) {
			delete(g.dayCount, k)
		}
	}
	g.dayCount[ip+"|"+day]++
}
