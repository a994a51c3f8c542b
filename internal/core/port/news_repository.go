package port

import (
	"context"

	"github.com/odysseycup/admin-gate/internal/core/domain"
)

// NewsRepository persists admin-managed news articles.
type NewsRepository interface {
	Create(ctx context.Context, item domain.NewsItem) error
	Get(ctx context.Context, id string) (*domain.NewsItem, error)
	List(ctx context.Context, publishedOnly bool) ([]domain.NewsItem, error)
	Update(ctx context.Context, item domain.NewsItem) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
}
