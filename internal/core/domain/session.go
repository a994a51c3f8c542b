package domain

import "time"

// Session is a server-side login session. Its ID doubles as the opaque
// bearer credential stored in the admin cookie; validity is decided solely
// by looking the record up, never by inspecting the token itself.
type Session struct {
	ID        string
	Identity  string
	Role      Role
	UserAgent *string
	ClientIP  *string
	CreatedAt time.Time
	LastSeen  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Usable reports whether the session may authenticate a request at the
// supplied moment. absoluteCap of zero disables the hard lifetime limit.
func (s Session) Usable(at time.Time, absoluteCap time.Duration) bool {
	if s.RevokedAt != nil {
		return false
	}
	if !at.Before(s.ExpiresAt) {
		return false
	}
	if absoluteCap > 0 && !at.Before(s.CreatedAt.Add(absoluteCap)) {
		return false
	}
	return true
}

// MatchesAgent performs the advisory device binding check: a stored
// user agent only rejects a lookup when both sides are non-empty and differ.
func (s Session) MatchesAgent(userAgent string) bool {
	if s.UserAgent == nil || *s.UserAgent == "" || userAgent == "" {
		return true
	}
	return *s.UserAgent == userAgent
}

// Revoke tombstones the session. Returns true when the state changed;
// revocation is monotonic and never undone.
func (s *Session) Revoke(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	return true
}
