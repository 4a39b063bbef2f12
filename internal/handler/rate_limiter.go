package handler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Simple in-memory token bucket per key (IP).
// Not shared across instances; RedisRateLimiter is.
type tokenBucket struct {
	tokens float64
	last   time.Time
}

type SimpleRateLimiter struct {
	buckets map[string]*tokenBucket
	mu      sync.Mutex
	rate    float64
	burst   float64
	now     func() time.Time

	// Buckets idle for this long have refilled to burst and are dropped.
	idle      time.Duration
	lastPrune time.Time
}

// NewSimpleRateLimiter refills rate tokens per second up to burst.
func NewSimpleRateLimiter(rate, burst float64) *SimpleRateLimiter {
	idle := time.Minute
	if rate > 0 {
		if full := time.Duration(burst / rate * float64(time.Second)); full > idle {
			idle = full
		}
	}
	return &SimpleRateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		idle:    idle,
	}
}

func (s *SimpleRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.prune(now)
	b, ok := s.buckets[key]
	if !ok {
		s.buckets[key] = &tokenBucket{tokens: s.burst - 1, last: now}
		return true, nil
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * s.rate
	if b.tokens > s.burst {
		b.tokens = s.burst
	}
	b.last = now
	if b.tokens >= 1 {
		b.tokens -= 1
		return true, nil
	}
	return false, nil
}

// prune drops full buckets at most once per idle period. A dropped key starts
// over at burst, which is where its bucket would be anyway.
func (s *SimpleRateLimiter) prune(now time.Time) {
	if now.Sub(s.lastPrune) < s.idle {
		return
	}
	s.lastPrune = now
	for key, b := range s.buckets {
		if now.Sub(b.last) >= s.idle {
			delete(s.buckets, key)
		}
	}
}

// RedisRateLimiter counts requests per key in fixed windows shared by every
// instance using the same Redis.
type RedisRateLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.Cmdable, limit int64, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().Truncate(l.window).Unix()
	k := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis rate limit: %w", err)
	}
	return count.Val() <= l.limit, nil
}

// RateLimitMiddleware rejects callers over their limit with 429. A limiter
// error lets the request through.
func (h *Handler) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.RateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 100*time.Millisecond)
		defer cancel()

		allowed, err := h.RateLimiter.Allow(ctx, clientIP(r))
		if err != nil {
			h.Logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
