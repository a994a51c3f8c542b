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
)

const otpCodeLength = 6

var (
	// ErrInvalidIdentity indicates a malformed identity payload. Rejected
	// before any store access.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrCodeCooldown indicates issuance is throttled for the identity.
	ErrCodeCooldown = errors.New("code issuance throttled")
	// ErrCodeMissing indicates no unconsumed code exists for the identity.
	ErrCodeMissing = errors.New("no code issued")
	// ErrCodeExpired indicates the code outlived its validity window.
	ErrCodeExpired = errors.New("code expired")
	// ErrCodeLocked indicates the failed-attempt ceiling was hit.
	ErrCodeLocked = errors.New("code locked")
	// ErrInvalidCode covers both wrong digits and unrecognized identities,
	// so the two are indistinguishable to a caller.
	ErrInvalidCode = errors.New("invalid code")
)

// AuthService implements the passwordless login flow: one-time code
// issuance with per-identity cooldown, and single-use verification that
// hands off to the session store.
type AuthService struct {
	codes        port.OTPRepository
	sessions     *SessionService
	dispatcher   port.MailDispatcher
	eligible     domain.AllowList
	logger       *zap.Logger
	codeTTL      time.Duration
	cooldown     time.Duration
	maxAttempts  int
	storeTimeout time.Duration
}

// NewAuthService constructs an AuthService.
func NewAuthService(codes port.OTPRepository, sessions *SessionService, dispatcher port.MailDispatcher, eligible domain.AllowList, codeTTL, cooldown time.Duration, maxAttempts int, log *zap.Logger) (*AuthService, error) {
	if codes == nil {
		return nil, fmt.Errorf("otp repository is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if codeTTL <= 0 {
		return nil, fmt.Errorf("code ttl must be positive")
	}
	if cooldown < 0 {
		return nil, fmt.Errorf("cooldown must not be negative")
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	if dispatcher == nil {
		dispatcher = noopMailDispatcher{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		codes:        codes,
		sessions:     sessions,
		dispatcher:   dispatcher,
		eligible:     eligible,
		logger:       log,
		codeTTL:      codeTTL,
		cooldown:     cooldown,
		maxAttempts:  maxAttempts,
		storeTimeout: defaultStoreTimeout,
	}, nil
}

// WithStoreTimeout overrides the per-call store deadline.
func (s *AuthService) WithStoreTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.storeTimeout = timeout
	}
}

// RequestCode issues a one-time code for the identity and hands it to the
// outbound mail queue. Unrecognized identities produce no observable side
// effect; the caller sees the same success either way. A non-zero duration
// is returned with ErrCodeCooldown when issuance is throttled.
func (s *AuthService) RequestCode(ctx context.Context, identity string) (time.Duration, error) {
	identity = domain.NormalizeIdentity(identity)
	if !validIdentity(identity) {
		return 0, ErrInvalidIdentity
	}

	if !s.eligible.Contains(identity) {
		// Deliberately indistinguishable from a successful issuance.
		s.logger.Debug("code requested for unrecognized identity",
			zap.String("identity", logger.MaskEmail(identity)))
		return 0, nil
	}

	code, err := security.GenerateNumericCode(otpCodeLength)
	if err != nil {
		return 0, fmt.Errorf("generate code: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	record, remaining, err := s.codes.Issue(storeCtx, identity, code, s.codeTTL, s.cooldown)
	if err != nil {
		return 0, fmt.Errorf("issue code: %w", err)
	}
	if remaining > 0 {
		return remaining, ErrCodeCooldown
	}

	// Fire-and-forget: delivery failures are the queue consumer's problem
	// and never change the outcome of this call.
	s.dispatcher.DispatchOTP(ctx, port.OTPMail{
		Identity:  record.Identity,
		Code:      record.Code,
		ExpiresAt: record.ExpiresAt,
	})

	s.logger.Info("one-time code issued",
		zap.String("identity", logger.MaskEmail(identity)),
		zap.Time("expires_at", record.ExpiresAt))

	return 0, nil
}

// VerifyCode checks the submitted code and, on success, creates a session.
// The consume step is atomic in the store, so two racing correct
// submissions create at most one session.
func (s *AuthService) VerifyCode(ctx context.Context, identity, submitted string, meta SessionMeta) (*domain.Session, error) {
	identity = domain.NormalizeIdentity(identity)
	submitted = strings.TrimSpace(submitted)
	if !validIdentity(identity) || submitted == "" {
		return nil, ErrInvalidCode
	}

	if !s.eligible.Contains(identity) {
		// Same shape as a wrong code: no identity enumeration.
		return nil, ErrInvalidCode
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	outcome, err := s.codes.Consume(storeCtx, identity, submitted, s.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}

	switch outcome {
	case port.ConsumeMissing:
		return nil, ErrCodeMissing
	case port.ConsumeExpired:
		return nil, ErrCodeExpired
	case port.ConsumeLocked:
		return nil, ErrCodeLocked
	case port.ConsumeMismatch:
		return nil, ErrInvalidCode
	case port.ConsumeMatched:
	default:
		return nil, fmt.Errorf("unexpected consume outcome %d", outcome)
	}

	session, err := s.sessions.Create(ctx, identity, domain.RoleAdmin, meta)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("login verified",
		zap.String("identity", logger.MaskEmail(identity)))

	return session, nil
}

func validIdentity(identity string) bool {
	if identity == "" {
		return false
	}
	at := strings.Index(identity, "@")
	return at > 0 && at < len(identity)-1
}

type noopMailDispatcher struct{}

func (noopMailDispatcher) DispatchOTP(context.Context, port.OTPMail) {}
