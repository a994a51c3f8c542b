package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
// Sessions are tombstoned on revocation, never deleted in the hot path.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create persists a new session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	sqlStmt, args, err := r.builder.Insert("gate.admin_sessions").
		Columns(
			"id",
			"identity",
			"role",
			"user_agent",
			"client_ip",
			"created_at",
			"last_seen",
			"expires_at",
			"revoked_at",
		).
		Values(
			session.ID,
			session.Identity,
			string(session.Role),
			optionalString(session.UserAgent),
			optionalString(session.ClientIP),
			session.CreatedAt,
			session.LastSeen,
			session.ExpiresAt,
			optionalTime(session.RevokedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sqlStmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Get fetches a session by its identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("gate.admin_sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// Touch extends the idle expiry in a single conditional UPDATE whose WHERE
// clause repeats the full usability predicate. A session that is revoked,
// idle-expired, or past its absolute cap matches zero rows, so a racing
// keep-alive can never resurrect it.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time, idleTTL, absoluteCap time.Duration) (*domain.Session, error) {
	if idleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive")
	}

	at = at.UTC()
	stmt := `
        UPDATE gate.admin_sessions
           SET expires_at = $2,
               last_seen = $3
         WHERE id = $1
           AND revoked_at IS NULL
           AND expires_at > $3
           AND ($4::bigint = 0 OR created_at + make_interval(secs => $4) > $3)
     RETURNING id, identity, role, user_agent, client_ip, created_at, last_seen, expires_at, revoked_at
    `

	row := r.exec.QueryRow(ctx, stmt, sessionID, at.Add(idleTTL), at, int64(absoluteCap/time.Second))
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("touch session: %w", err)
	}

	return session, nil
}

// Revoke tombstones the session. Already-revoked and unknown sessions are
// treated as revoked, so the operation is idempotent.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}

	stmt := `
        UPDATE gate.admin_sessions
           SET revoked_at = COALESCE(revoked_at, $2)
         WHERE id = $1
    `

	if _, err := r.exec.Exec(ctx, stmt, sessionID, at.UTC()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

var sessionColumns = []string{
	"id",
	"identity",
	"role",
	"user_agent",
	"client_ip",
	"created_at",
	"last_seen",
	"expires_at",
	"revoked_at",
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session   domain.Session
		role      string
		userAgent sql.NullString
		clientIP  sql.NullString
		revokedAt sql.NullTime
	)

	if err := row.Scan(
		&session.ID,
		&session.Identity,
		&role,
		&userAgent,
		&clientIP,
		&session.CreatedAt,
		&session.LastSeen,
		&session.ExpiresAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	parsed, ok := domain.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("session %s has unknown role %q", session.ID, role)
	}
	session.Role = parsed

	session.UserAgent = nullableStringPtr(userAgent)
	session.ClientIP = nullableStringPtr(clientIP)
	session.RevokedAt = nullableTimePtr(revokedAt)

	return &session, nil
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func optionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return (*value).UTC()
}

func nullableStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := strings.TrimSpace(value.String)
	if v == "" {
		return nil
	}
	return &v
}

func nullableTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

var _ port.SessionRepository = (*SessionRepository)(nil)
