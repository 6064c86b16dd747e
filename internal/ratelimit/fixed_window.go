package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed bool
	// RetryAfter is the time left in the current window when denied.
	RetryAfter time.Duration
}

// Limiter limits requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// FixedWindowLimiter limits requests per key in a fixed time window shared
// through Redis by every service replica.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	redisClient *redis.Client
	redisPrefix string
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "orionos:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
	}, nil
}

// Allow reports whether the key is within quota.
// On Redis failures it fails closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) Decision {
	if l == nil {
		return Decision{}
	}
	slot, retry := windowSlot(l.now(), l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, normalizeKey(key), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, l.window.Milliseconds()).Int64()
	if err != nil {
		return Decision{RetryAfter: retry}
	}
	if count > int64(l.limit) {
		return Decision{RetryAfter: retry}
	}
	return Decision{Allowed: true}
}

// Close releases the Redis connection pool.
func (l *FixedWindowLimiter) Close() error {
	return l.redisClient.Close()
}

// MemoryFixedWindowLimiter is the single-process variant used when no Redis
// is configured.
type MemoryFixedWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	slots  map[string]memorySlot
}

type memorySlot struct {
	slot  int64
	count int
}

// NewMemoryFixedWindowLimiter creates an in-process limiter.
func NewMemoryFixedWindowLimiter(limit int, window time.Duration) (*MemoryFixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &MemoryFixedWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		slots:  make(map[string]memorySlot),
	}, nil
}

func (l *MemoryFixedWindowLimiter) Allow(_ context.Context, key string) Decision {
	slot, retry := windowSlot(l.now(), l.window)
	key = normalizeKey(key)

	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.slots[key]
	if entry.slot != slot {
		entry = memorySlot{slot: slot}
	}
	entry.count++
	l.slots[key] = entry
	if entry.count > l.limit {
		return Decision{RetryAfter: retry}
	}
	return Decision{Allowed: true}
}

func windowSlot(now time.Time, window time.Duration) (int64, time.Duration) {
	windowMs := window.Milliseconds()
	nowMs := now.UTC().UnixMilli()
	slot := nowMs / windowMs
	retry := time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond
	return slot, retry
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
