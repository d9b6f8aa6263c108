package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/iliyamo/cardioai-backend/internal/config"
	"github.com/iliyamo/cardioai-backend/internal/logging"
)

// decision is the outcome of taking one token from a bucket.
type decision struct {
	Allowed   bool
	Remaining int64
	RetryMs   int64
}

// bucketStore takes a token from the bucket named key.
type bucketStore interface {
	Take(ctx context.Context, key string, now time.Time) (decision, error)
}

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// redisBuckets shares buckets between every API instance.
type redisBuckets struct {
	rdb redis.Scripter
	cfg config.RateLimitConfig
}

func (r *redisBuckets) Take(ctx context.Context, key string, now time.Time) (decision, error) {
	args := []interface{}{
		now.UnixMilli(),
		r.cfg.Capacity,
		r.cfg.RefillTokens,
		r.cfg.RefillInterval.Milliseconds(),
		int64(r.cfg.TTL / time.Second),
	}
	vals, err := limiterScript.Run(ctx, r.rdb, []string{key}, args...).Result()
	if err != nil {
		return decision{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return decision{}, fmt.Errorf("unexpected script result %#v", vals)
	}
	return decision{
		Allowed:   asInt64(arr[0]) == 1,
		Remaining: asInt64(arr[1]),
		RetryMs:   asInt64(arr[2]),
	}, nil
}

// localBuckets keeps one x/time/rate limiter per key in this process.
type localBuckets struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu          sync.Mutex
	buckets     map[string]*localBucket
	lastCleanup time.Time
}

type localBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newLocalBuckets(cfg config.RateLimitConfig) *localBuckets {
	perSec := float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()
	return &localBuckets{
		limit:   rate.Limit(perSec),
		burst:   cfg.Capacity,
		ttl:     cfg.TTL,
		buckets: map[string]*localBucket{},
	}
}

func (l *localBuckets) Take(_ context.Context, key string, now time.Time) (decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if b.lim.AllowN(now, 1) {
		return decision{Allowed: true, Remaining: int64(b.lim.TokensAt(now))}, nil
	}
	r := b.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now) // only asking when the next token lands
	return decision{Allowed: false, RetryMs: delay.Milliseconds()}, nil
}

// cleanup drops buckets idle for longer than ttl, at most once per ttl.
func (l *localBuckets) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.ttl {
		return
	}
	l.lastCleanup = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.ttl {
			delete(l.buckets, k)
		}
	}
}

// NewTokenBucket limits requests per key (see RATE_LIMIT_KEY_STRATEGY).
// Buckets live in Redis when rdb is non-nil; if Redis errors at request time
// the in-process buckets take over for that request.  With rdb nil only the
// in-process buckets are used.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	cfg = cfg.Normalized()
	local := newLocalBuckets(cfg)
	var primary bucketStore = local
	if rdb != nil {
		primary = &redisBuckets{rdb: rdb, cfg: cfg}
	}
	return tokenBucket(cfg, primary, local, time.Now)
}

func tokenBucket(cfg config.RateLimitConfig, primary, fallback bucketStore, now func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			ctx := c.Request().Context()
			log := logging.FromContext(ctx)
			t := now()

			d, err := primary.Take(ctx, key, t)
			if err != nil && fallback != nil && fallback != primary {
				if cfg.Debug {
					log.Warn("ratelimit: primary store failed, using local bucket", "key", key, "err", err)
				}
				d, err = fallback.Take(ctx, key, t)
			}
			if err != nil {
				log.Warn("ratelimit: no bucket available, allowing request", "key", key, "err", err)
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

			if !d.Allowed {
				secs := int(math.Ceil(float64(d.RetryMs) / 1000.0))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				log.Warn("rate limit exceeded", "key", key, "retry_after", secs)
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "Too many requests, please try again later.",
					"retry_after": secs,
				})
			}

			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	strategy := strings.ToLower(cfg.KeyStrategy)
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := userID(c)
	route := c.Request().Method + " " + c.Path()

	switch strategy {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

