package port

import (
	"context"
	"time"

	"github.com/odysseycup/admin-gate/internal/core/domain"
)

// OTPRepository persists the single unconsumed one-time code per identity.
//
// Issue and Consume must be atomic with respect to concurrent calls for the
// same identity: two racing Issue calls inside the cooldown window accept
// exactly one, and two racing Consume calls with the correct code succeed
// exactly once.
type OTPRepository interface {
	// Issue writes a fresh code for the identity unless its cooldown is
	// still active, in which case it returns the remaining wait and
	// domain.OneTimeCode is left untouched.
	Issue(ctx context.Context, identity, code string, ttl, cooldown time.Duration) (*domain.OneTimeCode, time.Duration, error)

	// Peek returns the unconsumed code record without mutating it.
	Peek(ctx context.Context, identity string) (*domain.OneTimeCode, error)

	// Consume performs the whole verification step atomically: expiry and
	// attempt-ceiling checks, attempt increment on mismatch, and
	// compare-and-delete on match.
	Consume(ctx context.Context, identity, submitted string, maxAttempts int) (ConsumeOutcome, error)

	// Delete drops the record for the identity regardless of state.
	Delete(ctx context.Context, identity string) error
}

// ConsumeOutcome is the closed result set of an atomic Consume call.
type ConsumeOutcome int

const (
	ConsumeMissing ConsumeOutcome = iota
	ConsumeExpired
	ConsumeLocked
	ConsumeMismatch
	ConsumeMatched
)
