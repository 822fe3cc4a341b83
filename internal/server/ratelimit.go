package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig controls the global request bucket and the per-IP login
// throttle. When RedisAddr is set, login attempt counters are shared across
// replicas through Redis; otherwise an in-process store is used.
type RateLimitConfig struct {
	GlobalRPS     float64
	GlobalBurst   int
	LoginLimit    int
	LoginWindow   time.Duration
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration
}

// loginThrottleStore counts login attempts per client key within a rolling
// window. Allow reports whether the attempt may proceed and, when denied, how
// long until the window resets.
type loginThrottleStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type rateLimiter struct {
	bucket      *tokenBucket
	loginStore  loginThrottleStore
	loginLimit  int
	loginWindow time.Duration
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{}

	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.bucket = newTokenBucket(cfg.GlobalRPS, burst)
	}

	if cfg.LoginLimit > 0 {
		window := cfg.LoginWindow
		if window <= 0 {
			window = time.Minute
		}
		rl.loginLimit = cfg.LoginLimit
		rl.loginWindow = window
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			rl.loginStore = newRedisThrottleStore(cfg)
		} else {
			rl.loginStore = newMemoryThrottleStore()
		}
	}

	return rl
}

// AllowRequest applies the global token bucket. A limiter without a bucket
// admits everything.
func (rl *rateLimiter) AllowRequest() bool {
	if rl == nil || rl.bucket == nil {
		return true
	}
	return rl.bucket.take()
}

// AllowLogin applies the per-IP login throttle for the given client key.
func (rl *rateLimiter) AllowLogin(ctx context.Context, key string) (bool, time.Duration, error) {
	if rl == nil || rl.loginStore == nil {
		return true, 0, nil
	}
	if key == "" {
		key = "unknown"
	}
	return rl.loginStore.Allow(ctx, key, rl.loginLimit, rl.loginWindow)
}

type tokenBucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		rate:     rate,
		capacity: float64(burst),
		tokens:   float64(burst),
		now:      time.Now,
	}
}

func (tb *tokenBucket) take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if !tb.last.IsZero() {
		elapsed := now.Sub(tb.last).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
	}
	tb.last = now

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

type throttleWindow struct {
	count   int
	resetAt time.Time
}

type memoryThrottleStore struct {
	mu      sync.Mutex
	windows map[string]throttleWindow
	now     func() time.Time
}

func newMemoryThrottleStore() *memoryThrottleStore {
	return &memoryThrottleStore{
		windows: make(map[string]throttleWindow),
		now:     time.Now,
	}
}

func (s *memoryThrottleStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.windows[key]
	if !ok || now.After(entry.resetAt) {
		entry = throttleWindow{resetAt: now.Add(window)}
	}
	entry.count++
	s.windows[key] = entry

	if entry.count > limit {
		return false, entry.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

type redisThrottleStore struct {
	client  *redis.Client
	timeout time.Duration
}

func newRedisThrottleStore(cfg RateLimitConfig) *redisThrottleStore {
	timeout := cfg.RedisTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &redisThrottleStore{client: client, timeout: timeout}
}

func (s *redisThrottleStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	counterKey := "shelfreads:login:" + key
	count, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment login counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, counterKey, window).Err(); err != nil {
			return false, 0, fmt.Errorf("set login counter expiry: %w", err)
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := s.client.TTL(ctx, counterKey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}
