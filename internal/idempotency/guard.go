package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard admits a key once per window. Acquire returns false for a key already
// seen inside the window. Release forgets a key so a failed attempt can be redelivered.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type MemoryGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewMemoryGuard(window time.Duration) *MemoryGuard {
	return &MemoryGuard{
		window: window,
		seen:   map[string]time.Time{},
		now:    time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
		}
	}
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = now
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	return nil
}

type RedisGuard struct {
	client *redis.Client
	window time.Duration
	prefix string
}

func NewRedisGuard(client *redis.Client, window time.Duration) *RedisGuard {
	return &RedisGuard{client: client, window: window, prefix: "idem:"}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, g.prefix+key, 1, g.window).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.prefix+key).Err()
}
