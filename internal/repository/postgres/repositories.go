package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles the PostgreSQL-backed repositories sharing one pool.
type Repositories struct {
	Sessions *SessionRepository
	News     *NewsRepository
}

// NewRepositories wires all repositories against the supplied pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Sessions: NewSessionRepository(pool),
		News:     NewNewsRepository(pool),
	}
}
