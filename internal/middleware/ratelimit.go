package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hospital-guest-access/internal/config"
)

// takeToken refills the bucket in whole intervals, then tries to take
// one token.  Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now, cap, refill, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local b = redis.call('HMGET', KEYS[1], 't', 'at')
local tokens, at = tonumber(b[1]), tonumber(b[2])
if tokens == nil or at == nil then
  tokens, at = cap, now
end
local n = math.floor(math.max(0, now - at) / every)
if n > 0 then
  tokens = math.min(cap, tokens + n * refill)
  at = at + n * every
end
local allowed, wait = 0, 0
if tokens > 0 then
  allowed, tokens = 1, tokens - 1
else
  wait = math.max(0, every - (now - at))
end
redis.call('HSET', KEYS[1], 't', tokens, 'at', at)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

var errBadReply = errors.New("unexpected limiter reply")

type bucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

// take spends one token of key.  ok is false only when the bucket is
// empty; Redis failures return an error and the caller lets the request
// through.
func (b bucket) take(ctx context.Context, key string) (ok bool, remaining int64, retry time.Duration, err error) {
	res, err := takeToken.Run(ctx, b.rdb, []string{key},
		time.Now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		return false, 0, 0, errBadReply
	}
	return res[0] == 1, res[1], time.Duration(res[2]) * time.Millisecond, nil
}

// NewTokenBucket limits requests with a Redis token bucket shared by
// every server instance.  Without Redis, or when disabled, it passes
// everything through; a Redis error fails open as well.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := bucket{cfg: cfg, rdb: rdb}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			allowed, remaining, retry, err := b.take(c.Request().Context(), key)
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("ratelimit %s: %v", key, err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if allowed {
				return next(c)
			}

			secs := int((retry + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"success":     false,
				"error":       "rate limit exceeded",
				"reason":      "TOO_MANY_REQUESTS",
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the parts named by the key strategy, e.g.
// "ip_route" keys on client IP and route.  Parts are ip, user and
// route; an unknown or empty strategy uses all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	add := func(name string) bool {
		switch name {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		default:
			return false
		}
		return true
	}
	used := false
	for _, name := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		used = add(name) || used
	}
	if !used {
		parts = parts[:1]
		add("ip")
		add("user")
		add("route")
	}
	return strings.Join(parts, ":")
}
