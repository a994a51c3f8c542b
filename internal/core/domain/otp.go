package domain

import "time"

// OneTimeCode is the single unconsumed login code held for an identity.
// Exactly one record exists per identity at any instant; issuing a new code
// overwrites the prior one.
type OneTimeCode struct {
	Identity      string
	Code          string
	Attempts      int
	IssuedAt      time.Time
	ExpiresAt     time.Time
	CooldownUntil time.Time
}

// Expired reports whether the code is past its validity window.
func (c OneTimeCode) Expired(at time.Time) bool {
	return !at.Before(c.ExpiresAt)
}

// Locked reports whether the failed-attempt ceiling has been reached.
func (c OneTimeCode) Locked(maxAttempts int) bool {
	return maxAttempts > 0 && c.Attempts >= maxAttempts
}

// CooldownRemaining returns how long issuance is still throttled for this
// identity. Zero means a new code may be issued.
func (c OneTimeCode) CooldownRemaining(at time.Time) time.Duration {
	if remaining := c.CooldownUntil.Sub(at); remaining > 0 {
		return remaining
	}
	return 0
}
