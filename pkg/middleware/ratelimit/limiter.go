package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Memory is a token bucket per key, local to the process.
type Memory struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemory(perMinute, burst int) *Memory {
	if burst < 1 {
		burst = 1
	}
	return &Memory{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: 5 * time.Minute,
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > m.idleTTL {
		for k, b := range m.buckets {
			if now.Sub(b.seen) > m.idleTTL {
				delete(m.buckets, k)
			}
		}
		m.lastSweep = now
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Redis is a fixed-window counter shared by every replica.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewRedis(client *redis.Client, prefix string, perWindow int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: int64(perWindow), window: window}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Incr(ctx, r.key(key)).Result()
	if err != nil {
		return true, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, r.key(key), r.window).Err(); err != nil {
			return true, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return count <= r.limit, nil
}
