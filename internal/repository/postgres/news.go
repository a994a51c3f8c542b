package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/repository"
)

// NewsRepository implements port.NewsRepository backed by PostgreSQL.
type NewsRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewNewsRepository constructs a news repository from any pgExecutor.
func NewNewsRepository(exec pgExecutor) *NewsRepository {
	repo := &NewsRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create persists a new article.
func (r *NewsRepository) Create(ctx context.Context, item domain.NewsItem) error {
	stmt, args, err := r.builder.Insert("gate.news").
		Columns("id", "title", "body", "image_url", "published", "created_at", "updated_at").
		Values(item.ID, item.Title, item.Body, optionalString(item.ImageURL), item.Published, item.CreatedAt, item.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert news sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert news: %w", err)
	}

	return nil
}

// Get fetches a single article by ID.
func (r *NewsRepository) Get(ctx context.Context, id string) (*domain.NewsItem, error) {
	stmt, args, err := r.builder.
		Select(newsColumns...).
		From("gate.news").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select news sql: %w", err)
	}

	item, err := scanNews(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan news: %w", err)
	}

	return item, nil
}

// List returns articles ordered newest first, optionally published only.
func (r *NewsRepository) List(ctx context.Context, publishedOnly bool) ([]domain.NewsItem, error) {
	query := r.builder.
		Select(newsColumns...).
		From("gate.news").
		OrderBy("created_at DESC")
	if publishedOnly {
		query = query.Where(squirrel.Eq{"published": true})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list news sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	items := make([]domain.NewsItem, 0)
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news: %w", err)
	}

	return items, nil
}

// Update rewrites the mutable fields of an article.
func (r *NewsRepository) Update(ctx context.Context, item domain.NewsItem) error {
	stmt, args, err := r.builder.Update("gate.news").
		Set("title", item.Title).
		Set("body", item.Body).
		Set("image_url", optionalString(item.ImageURL)).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update news sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update news: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetPublished flips the published flag.
func (r *NewsRepository) SetPublished(ctx context.Context, id string, published bool) error {
	tag, err := r.exec.Exec(ctx,
		"UPDATE gate.news SET published = $2, updated_at = now() WHERE id = $1", id, published)
	if err != nil {
		return fmt.Errorf("publish news: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes an article.
func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.exec.Exec(ctx, "DELETE FROM gate.news WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete news: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var newsColumns = []string{
	"id",
	"title",
	"body",
	"image_url",
	"published",
	"created_at",
	"updated_at",
}

func scanNews(row pgx.Row) (*domain.NewsItem, error) {
	var (
		item     domain.NewsItem
		imageURL sql.NullString
	)

	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Body,
		&imageURL,
		&item.Published,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	item.ImageURL = nullableStringPtr(imageURL)

	return &item, nil
}

var _ port.NewsRepository = (*NewsRepository)(nil)
