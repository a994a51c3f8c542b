package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/infra/logger"
	"github.com/odysseycup/admin-gate/internal/infra/security"
	"github.com/odysseycup/admin-gate/internal/repository"
)

const (
	sessionTokenBytes   = 32
	defaultStoreTimeout = 3 * time.Second
)

var (
	// ErrSessionInvalid collapses every unauthenticated state: missing,
	// revoked, idle-expired, capped, or agent-mismatched sessions all look
	// the same to callers.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrStoreUnavailable indicates the session store could not answer in
	// time. The gateway treats it as invalid (fail closed).
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// SessionMeta carries the optional binding metadata captured at creation.
type SessionMeta struct {
	UserAgent string
	ClientIP  string
}

// SessionService owns the lifecycle of server-side sessions: creation after
// a successful code verification, validation on every protected request,
// sliding extension from the keep-alive beacon, and revocation on logout.
type SessionService struct {
	sessions     port.SessionRepository
	logger       *zap.Logger
	idleTTL      time.Duration
	absoluteCap  time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// NewSessionService constructs a SessionService. absoluteCap of zero
// disables the hard lifetime limit.
func NewSessionService(sessions port.SessionRepository, idleTTL, absoluteCap time.Duration, log *zap.Logger) (*SessionService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if idleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive")
	}
	if absoluteCap < 0 {
		return nil, fmt.Errorf("absolute cap must not be negative")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SessionService{
		sessions:     sessions,
		logger:       log,
		idleTTL:      idleTTL,
		absoluteCap:  absoluteCap,
		storeTimeout: defaultStoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithStoreTimeout overrides the per-call store deadline.
func (s *SessionService) WithStoreTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.storeTimeout = timeout
	}
}

// IdleTTL exposes the configured sliding window, used to align cookie
// lifetimes with session expiry.
func (s *SessionService) IdleTTL() time.Duration {
	return s.idleTTL
}

// Create allocates a fresh opaque session for the identity.
func (s *SessionService) Create(ctx context.Context, identity string, role domain.Role, meta SessionMeta) (*domain.Session, error) {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if _, ok := domain.ParseRole(string(role)); !ok {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	token, err := security.GenerateSessionToken(sessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:        token,
		Identity:  identity,
		Role:      role,
		UserAgent: optionalMeta(meta.UserAgent),
		ClientIP:  optionalMeta(meta.ClientIP),
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(s.idleTTL),
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.sessions.Create(storeCtx, session); err != nil {
		s.logger.Error("create session failed",
			zap.String("identity", logger.MaskEmail(identity)),
			zap.Error(err))
		return nil, s.storeErr(err)
	}

	return &session, nil
}

// Validate looks the token up and applies the full usability predicate
// without mutating anything. Read-only checks never slide the expiry.
func (s *SessionService) Validate(ctx context.Context, token string, meta SessionMeta) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalid
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	session, err := s.sessions.Get(storeCtx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		s.logger.Error("session lookup failed", zap.Error(err))
		return nil, s.storeErr(err)
	}

	if !session.Usable(s.now(), s.absoluteCap) {
		return nil, ErrSessionInvalid
	}
	if !session.MatchesAgent(meta.UserAgent) {
		s.logger.Warn("session agent mismatch",
			zap.String("identity", logger.MaskEmail(session.Identity)))
		return nil, ErrSessionInvalid
	}

	return session, nil
}

// Extend slides the idle expiry. The session must pass the same usability
// check first; the repository enforces check-and-extend atomically so a
// keep-alive racing a logout or expiry cannot revive a dead session.
func (s *SessionService) Extend(ctx context.Context, token string, meta SessionMeta) (*domain.Session, error) {
	// The advisory agent binding is checked on the read; the conditional
	// touch below re-applies the revocation/expiry predicate atomically.
	if _, err := s.Validate(ctx, token, meta); err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	session, err := s.sessions.Touch(storeCtx, strings.TrimSpace(token), s.now(), s.idleTTL, s.absoluteCap)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		s.logger.Error("session touch failed", zap.Error(err))
		return nil, s.storeErr(err)
	}

	return session, nil
}

// Revoke tombstones the session. Unknown tokens are already revoked as far
// as the caller is concerned, so they do not error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.sessions.Revoke(storeCtx, token, s.now()); err != nil {
		s.logger.Error("session revoke failed", zap.Error(err))
		return s.storeErr(err)
	}

	return nil
}

func (s *SessionService) storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func optionalMeta(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
