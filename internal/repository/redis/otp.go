package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/repository"
)

const (
	defaultOTPPrefix = "gate:otp"

	fieldCode          = "code"
	fieldIssuedAt      = "issued_at"
	fieldExpiresAt     = "expires_at"
	fieldCooldownUntil = "cooldown_until"
	fieldAttempts      = "attempts"
)

// issueScript enforces the per-identity cooldown and the overwrite in one
// atomic step, so concurrent issue calls inside the window accept exactly
// one. Returns {0, remaining_seconds} when throttled, {1, 0} on success.
var issueScript = red.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local cooldown = redis.call('HGET', key, 'cooldown_until')
if cooldown and now < tonumber(cooldown) then
  return {0, tonumber(cooldown) - now}
end
redis.call('HSET', key,
  'code', ARGV[2],
  'issued_at', ARGV[1],
  'expires_at', ARGV[3],
  'cooldown_until', ARGV[4],
  'attempts', '0')
redis.call('EXPIRE', key, tonumber(ARGV[5]))
return {1, 0}
`)

// consumeScript performs the full verification step atomically: expiry and
// attempt-ceiling checks, the attempt increment, and the compare-and-delete
// on a match. At most one of two racing correct submissions observes 4.
var consumeScript = red.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local code = redis.call('HGET', key, 'code')
if not code then
  return 0
end
if now >= tonumber(redis.call('HGET', key, 'expires_at')) then
  redis.call('DEL', key)
  return 1
end
local attempts = tonumber(redis.call('HGET', key, 'attempts') or '0')
if attempts >= tonumber(ARGV[3]) then
  redis.call('DEL', key)
  return 2
end
redis.call('HINCRBY', key, 'attempts', 1)
if code == ARGV[2] then
  redis.call('DEL', key)
  return 4
end
return 3
`)

// OTPRepository persists one-time login codes in Redis, one keyed record
// per identity.
type OTPRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewOTPRepository constructs an OTP repository with the provided Redis
// client and key prefix.
func NewOTPRepository(client *red.Client, keyPrefix string) *OTPRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}

	return &OTPRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *OTPRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Issue writes a fresh code for the identity unless its cooldown is still
// active. The cooldown check and the overwrite run as one script, keeping
// concurrent issuance race-free per identity.
func (r *OTPRepository) Issue(ctx context.Context, identity, code string, ttl, cooldown time.Duration) (*domain.OneTimeCode, time.Duration, error) {
	identity = domain.NormalizeIdentity(identity)
	switch {
	case identity == "":
		return nil, 0, errors.New("identity is required")
	case strings.TrimSpace(code) == "":
		return nil, 0, errors.New("code is required")
	case ttl <= 0:
		return nil, 0, errors.New("ttl must be positive")
	case cooldown < 0:
		return nil, 0, errors.New("cooldown must not be negative")
	}

	now := r.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	cooldownUntil := now.Add(cooldown)

	keyTTL := ttl
	if cooldown > keyTTL {
		keyTTL = cooldown
	}

	res, err := issueScript.Run(ctx, r.client, []string{r.key(identity)},
		now.Unix(),
		code,
		expiresAt.Unix(),
		cooldownUntil.Unix(),
		int64(keyTTL/time.Second),
	).Int64Slice()
	if err != nil {
		return nil, 0, fmt.Errorf("redis issue otp: %w", err)
	}
	if len(res) != 2 {
		return nil, 0, fmt.Errorf("redis issue otp: unexpected reply %v", res)
	}

	if res[0] == 0 {
		return nil, time.Duration(res[1]) * time.Second, nil
	}

	return &domain.OneTimeCode{
		Identity:      identity,
		Code:          code,
		Attempts:      0,
		IssuedAt:      now,
		ExpiresAt:     expiresAt,
		CooldownUntil: cooldownUntil,
	}, 0, nil
}

// Peek returns the unconsumed record for the identity without mutating it.
func (r *OTPRepository) Peek(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return nil, errors.New("identity is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall otp: %w", err)
	}
	if len(values) == 0 || values[fieldCode] == "" {
		return nil, repository.ErrNotFound
	}

	issuedAt, err := parseUnix(values[fieldIssuedAt])
	if err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	cooldownUntil, err := parseUnix(values[fieldCooldownUntil])
	if err != nil {
		return nil, fmt.Errorf("parse cooldown_until: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.OneTimeCode{
		Identity:      identity,
		Code:          values[fieldCode],
		Attempts:      attempts,
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		CooldownUntil: cooldownUntil,
	}, nil
}

// Consume runs the atomic verification script and maps its reply onto the
// closed outcome set.
func (r *OTPRepository) Consume(ctx context.Context, identity, submitted string, maxAttempts int) (port.ConsumeOutcome, error) {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return port.ConsumeMissing, errors.New("identity is required")
	}
	if maxAttempts <= 0 {
		return port.ConsumeMissing, errors.New("max attempts must be positive")
	}

	now := r.now().UTC()

	res, err := consumeScript.Run(ctx, r.client, []string{r.key(identity)},
		now.Unix(),
		submitted,
		maxAttempts,
	).Int64()
	if err != nil {
		return port.ConsumeMissing, fmt.Errorf("redis consume otp: %w", err)
	}

	switch res {
	case 0:
		return port.ConsumeMissing, nil
	case 1:
		return port.ConsumeExpired, nil
	case 2:
		return port.ConsumeLocked, nil
	case 3:
		return port.ConsumeMismatch, nil
	case 4:
		return port.ConsumeMatched, nil
	default:
		return port.ConsumeMissing, fmt.Errorf("redis consume otp: unexpected reply %d", res)
	}
}

// Delete drops the record for the identity. Missing records are not an error.
func (r *OTPRepository) Delete(ctx context.Context, identity string) error {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return errors.New("identity is required")
	}

	if err := r.client.Del(ctx, r.key(identity)).Err(); err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	return nil
}

func (r *OTPRepository) key(identity string) string {
	return fmt.Sprintf("%s:%s", r.prefix, identity)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.OTPRepository = (*OTPRepository)(nil)
