package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/repository"
)

type fakeSessionRepository struct {
	sessions map[string]*domain.Session

	createErr error
	getErr    error
	touchErr  error
	revokeErr error

	touchCalls  int
	revokeCalls []string
}

func newFakeSessionRepository(sessions ...domain.Session) *fakeSessionRepository {
	repo := &fakeSessionRepository{sessions: make(map[string]*domain.Session)}
	for i := range sessions {
		sessionCopy := sessions[i]
		repo.sessions[sessionCopy.ID] = &sessionCopy
	}
	return repo
}

func (f *fakeSessionRepository) Create(ctx context.Context, session domain.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	stored := session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepository) Touch(ctx context.Context, sessionID string, at time.Time, idleTTL, absoluteCap time.Duration) (*domain.Session, error) {
	f.touchCalls++
	if f.touchErr != nil {
		return nil, f.touchErr
	}
	session, ok := f.sessions[sessionID]
	if !ok || !session.Usable(at, absoluteCap) {
		return nil, repository.ErrNotFound
	}
	session.LastSeen = at
	session.ExpiresAt = at.Add(idleTTL)
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepository) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revokeCalls = append(f.revokeCalls, sessionID)
	if session, ok := f.sessions[sessionID]; ok {
		session.Revoke(at)
	}
	return nil
}

func newTestSessionService(t *testing.T, repo *fakeSessionRepository, idleTTL, cap time.Duration, now time.Time) *SessionService {
	t.Helper()
	svc, err := NewSessionService(repo, idleTTL, cap, nil)
	if err != nil {
		t.Fatalf("failed to create session service: %v", err)
	}
	svc.WithClock(func() time.Time { return now })
	return svc
}

func strPtr(s string) *string { return &s }

func TestSessionServiceCreateIssuesOpaqueToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository()
	svc := newTestSessionService(t, repo, 15*time.Minute, 0, now)

	session, err := svc.Create(context.Background(), "Admin@Example.COM", domain.RoleAdmin, SessionMeta{UserAgent: "agent-a"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(session.ID) != 64 {
		t.Fatalf("expected 64 hex chars of token, got %d", len(session.ID))
	}
	if session.Identity != "admin@example.com" {
		t.Fatalf("expected normalized identity, got %q", session.Identity)
	}
	if !session.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}
	if _, ok := repo.sessions[session.ID]; !ok {
		t.Fatal("session was not persisted")
	}

	second, err := svc.Create(context.Background(), "admin@example.com", domain.RoleAdmin, SessionMeta{})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second.ID == session.ID {
		t.Fatal("expected distinct tokens per session")
	}
}

func TestSessionServiceValidateDoesNotSlideExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(5 * time.Minute)
	repo := newFakeSessionRepository(domain.Session{
		ID:        "token-1",
		Identity:  "admin@example.com",
		Role:      domain.RoleAdmin,
		CreatedAt: now.Add(-10 * time.Minute),
		LastSeen:  now.Add(-time.Minute),
		ExpiresAt: expiry,
	})
	svc := newTestSessionService(t, repo, 15*time.Minute, 0, now)

	session, err := svc.Validate(context.Background(), "token-1", SessionMeta{})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !session.ExpiresAt.Equal(expiry) {
		t.Fatalf("validate must not move expiry, got %v", session.ExpiresAt)
	}
	if !repo.sessions["token-1"].ExpiresAt.Equal(expiry) {
		t.Fatal("validate mutated the stored session")
	}
}

func TestSessionServiceValidateRejectsDeadSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)

	cases := []struct {
		name    string
		session domain.Session
		cap     time.Duration
		agent   string
	}{
		{
			name: "idle expired",
			session: domain.Session{
				ID:        "tok",
				CreatedAt: now.Add(-time.Hour),
				ExpiresAt: now.Add(-time.Second),
			},
		},
		{
			name: "expires exactly now",
			session: domain.Session{
				ID:        "tok",
				CreatedAt: now.Add(-time.Hour),
				ExpiresAt: now,
			},
		},
		{
			name: "revoked",
			session: domain.Session{
				ID:        "tok",
				CreatedAt: now.Add(-time.Hour),
				ExpiresAt: now.Add(time.Hour),
				RevokedAt: &revokedAt,
			},
		},
		{
			name: "absolute cap reached",
			session: domain.Session{
				ID:        "tok",
				CreatedAt: now.Add(-25 * time.Hour),
				ExpiresAt: now.Add(time.Hour),
			},
			cap: 24 * time.Hour,
		},
		{
			name: "agent mismatch",
			session: domain.Session{
				ID:        "tok",
				CreatedAt: now.Add(-time.Minute),
				ExpiresAt: now.Add(time.Hour),
				UserAgent: strPtr("agent-a"),
			},
			agent: "agent-b",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.session.Identity = "admin@example.com"
			tc.session.Role = domain.RoleAdmin
			repo := newFakeSessionRepository(tc.session)
			svc := newTestSessionService(t, repo, 15*time.Minute, tc.cap, now)

			if _, err := svc.Validate(context.Background(), "tok", SessionMeta{UserAgent: tc.agent}); !errors.Is(err, ErrSessionInvalid) {
				t.Fatalf("expected ErrSessionInvalid, got %v", err)
			}
		})
	}
}

func TestSessionServiceValidateUnknownToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestSessionService(t, newFakeSessionRepository(), 15*time.Minute, 0, now)

	if _, err := svc.Validate(context.Background(), "missing", SessionMeta{}); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "  ", SessionMeta{}); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for blank token, got %v", err)
	}
}

func TestSessionServiceValidateFailsClosedOnStoreError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository()
	repo.getErr = errors.New("connection refused")
	svc := newTestSessionService(t, repo, 15*time.Minute, 0, now)

	_, err := svc.Validate(context.Background(), "tok", SessionMeta{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestSessionServiceExtendSlidesExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository(domain.Session{
		ID:        "tok",
		Identity:  "admin@example.com",
		Role:      domain.RoleAdmin,
		CreatedAt: now.Add(-10 * time.Minute),
		LastSeen:  now.Add(-5 * time.Minute),
		ExpiresAt: now.Add(5 * time.Minute),
	})
	svc := newTestSessionService(t, repo, 15*time.Minute, 0, now)

	session, err := svc.Extend(context.Background(), "tok", SessionMeta{})
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if !session.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(15*time.Minute), session.ExpiresAt)
	}
	if !session.LastSeen.Equal(now) {
		t.Fatalf("expected last seen %v, got %v", now, session.LastSeen)
	}
}

func TestSessionServiceExtendCannotResurrectRevoked(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Second)
	repo := newFakeSessionRepository(domain.Session{
		ID:        "tok",
		Identity:  "admin@example.com",
		Role:      domain.RoleAdmin,
		CreatedAt: now.Add(-10 * time.Minute),
		ExpiresAt: now.Add(5 * time.Minute),
		RevokedAt: &revokedAt,
	})
	svc := newTestSessionService(t, repo, 15*time.Minute, 0, now)

	if _, err := svc.Extend(context.Background(), "tok", SessionMeta{}); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if repo.sessions["tok"].RevokedAt == nil {
		t.Fatal("revocation must survive an extend attempt")
	}
}

func TestSessionServiceExtendRespectsAbsoluteCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository(domain.Session{
		ID:        "tok",
		Identity:  "admin@example.com",
		Role:      domain.RoleAdmin,
		CreatedAt: now.Add(-13 * time.Hour),
		ExpiresAt: now.Add(5 * time.Minute),
	})
	svc := newTestSessionService(t, repo, 15*time.Minute, 12*time.Hour, now)

	if _, err := svc.Extend(context.Background(), "tok", SessionMeta{}); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid past the cap, got %v", err)
	}
}

func TestSessionServiceRevokeIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeSessionRepository(domain.Session{
		ID:        "tok",
		Identity:  "admin@example.com",
		Role:      domain.RoleAdmin,
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(10 * time.Minute),
	})
	svc := newTestSessionService(t, repo, 15*time.Minute, 0, now)

	if err := svc.Revoke(context.Background(), "tok"); err != nil {
		t.Fatalf("first revoke failed: %v", err)
	}
	firstRevokedAt := *repo.sessions["tok"].RevokedAt

	if err := svc.Revoke(context.Background(), "tok"); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
	if !repo.sessions["tok"].RevokedAt.Equal(firstRevokedAt) {
		t.Fatal("second revoke must not move the tombstone")
	}

	if err := svc.Revoke(context.Background(), "unknown"); err != nil {
		t.Fatalf("revoking an unknown token must not error: %v", err)
	}
	if err := svc.Revoke(context.Background(), ""); err != nil {
		t.Fatalf("revoking an empty token must not error: %v", err)
	}
}
