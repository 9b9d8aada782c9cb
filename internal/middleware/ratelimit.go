package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"zing/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a rule does when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRedis = errors.New("rate limit store not configured")

// Rule is a fixed-window budget shared by every route registered under Name.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Policy FailPolicy
}

// Limiter counts requests per rule and caller in Redis. A disabled limiter
// admits everything, which is how development and test runs behave.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewLimiter returns a limiter backed by rdb.
func NewLimiter(rdb *redis.Client, enabled bool) *Limiter {
	return &Limiter{rdb: rdb, enabled: enabled}
}

// Allow records one hit for caller under rule and returns whether it fits the
// budget along with the hits left in the current window.
func (l *Limiter) Allow(ctx context.Context, rule Rule, caller string) (bool, int, error) {
	if !l.enabled {
		return true, rule.Limit, nil
	}
	if l.rdb == nil {
		return false, 0, errNoRedis
	}

	key := "zing:rl:" + rule.Name + ":" + caller
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			return false, 0, err
		}
	}

	hits := int(n)
	left := rule.Limit - hits
	if left < 0 {
		left = 0
	}
	return hits <= rule.Limit, left, nil
}

// Handler enforces rule, keying callers by user ID when authenticated and by
// remote IP otherwise.
func (l *Limiter) Handler(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid := UserID(c); uid != "" {
			caller = "user:" + uid
		}

		ok, left, err := l.Allow(c.UserContext(), rule, caller)
		if err != nil {
			observability.Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("rule", rule.Name),
				slog.Bool("fail_closed", rule.Policy == FailClosed),
				slog.String("error", err.Error()),
			)
			if rule.Policy == FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if l.enabled {
			c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			c.Set("X-RateLimit-Remaining", strconv.Itoa(left))
		}
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(rule.Window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
