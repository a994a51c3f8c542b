package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitStore defines the persistence operations required by the middleware.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter evaluates sliding-window rules against a shared store.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

type ruleOutcome struct {
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
	allowed    bool
}

// ThrottledResponse is the 429 payload for exhausted windows.
type ThrottledResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	TraceID           string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. Rules with
// a missing identifier or a non-positive limit/window are ignored; a store
// failure lets the request through so the auth endpoints stay reachable when
// Redis is down.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var strictest *ruleOutcome

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			key := fmt.Sprintf("%s:%s", rule.Name, identifier)

			outcome, err := rl.evaluate(c.Request.Context(), rule, key, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", identifier),
					zap.Error(err))
				continue
			}

			if !outcome.allowed {
				writeRateHeaders(c, outcome)
				rl.reject(c, outcome)
				return
			}

			if strictest == nil || outcome.remaining < strictest.remaining {
				snapshot := outcome
				strictest = &snapshot
			}
		}

		if strictest != nil {
			writeRateHeaders(c, *strictest)
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, key string, now time.Time) (ruleOutcome, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return ruleOutcome{}, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return ruleOutcome{}, err
	}

	reset := now.Add(rule.Window)
	if oldest, has, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err != nil {
		return ruleOutcome{}, err
	} else if has {
		reset = oldest.Add(rule.Window)
	}

	outcome := ruleOutcome{
		limit: rule.Limit,
		reset: reset,
	}

	if count >= rule.Limit {
		outcome.retryAfter = reset.Sub(now)
		if outcome.retryAfter < 0 {
			outcome.retryAfter = 0
		}
		return outcome, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return ruleOutcome{}, err
	}

	outcome.allowed = true
	outcome.remaining = rule.Limit - count - 1
	if outcome.remaining < 0 {
		outcome.remaining = 0
	}

	return outcome, nil
}

func writeRateHeaders(c *gin.Context, outcome ruleOutcome) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(outcome.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(outcome.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(outcome.reset.Unix(), 10))

	if !outcome.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(outcome)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, outcome ruleOutcome) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ThrottledResponse{
		OK:                false,
		Error:             "too many requests",
		RetryAfterSeconds: retrySeconds(outcome),
		TraceID:           GetTraceID(c),
	})
}

func retrySeconds(outcome ruleOutcome) int {
	seconds := int(math.Ceil(outcome.retryAfter.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
