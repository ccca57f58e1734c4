package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"cfsub/internal/models"
)

const (
	limiterIdleTTL    = 30 * time.Minute
	limiterSweepEvery = 2 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP and forgets idle ones.
type IPRateLimiter struct {
	mu        sync.Mutex
	perMinute int
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		perMinute: perMinute,
		burst:     burst,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

func (l *IPRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepEvery {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit rejects requests beyond perMinute per client IP. perMinute <= 0 disables it.
func RateLimit(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	l := NewIPRateLimiter(perMinute)
	return func(c *fiber.Ctx) error {
		if !l.get(c.IP()).Allow() {
			c.Set(fiber.HeaderRetryAfter, "60")
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{Error: models.AppError{
				Code:    "RATE_LIMITED",
				Message: "too many requests",
				Stage:   "rate_limit",
			}})
		}
		return c.Next()
	}
}
