package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/core/port"
	"github.com/odysseycup/admin-gate/internal/repository"
)

var (
	// ErrNewsNotFound indicates the requested article does not exist.
	ErrNewsNotFound = errors.New("news item not found")
	// ErrNewsInvalid indicates a malformed article payload.
	ErrNewsInvalid = errors.New("invalid news item")
)

// NewsService manages the panel's news articles.
type NewsService struct {
	news   port.NewsRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewNewsService constructs a NewsService.
func NewNewsService(news port.NewsRepository, log *zap.Logger) (*NewsService, error) {
	if news == nil {
		return nil, fmt.Errorf("news repository is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NewsService{
		news:   news,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (s *NewsService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// NewsInput carries the mutable article fields from the handlers.
type NewsInput struct {
	Title    string
	Body     string
	ImageURL string
}

// Create validates and persists a new unpublished article.
func (s *NewsService) Create(ctx context.Context, input NewsInput) (*domain.NewsItem, error) {
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if title == "" || body == "" {
		return nil, ErrNewsInvalid
	}

	now := s.now()
	item := domain.NewsItem{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		ImageURL:  optionalMeta(input.ImageURL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.news.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create news: %w", err)
	}

	return &item, nil
}

// Get returns a single article.
func (s *NewsService) Get(ctx context.Context, id string) (*domain.NewsItem, error) {
	item, err := s.news.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNewsNotFound
		}
		return nil, fmt.Errorf("get news: %w", err)
	}
	return item, nil
}

// List returns articles, optionally restricted to published ones.
func (s *NewsService) List(ctx context.Context, publishedOnly bool) ([]domain.NewsItem, error) {
	items, err := s.news.List(ctx, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	return items, nil
}

// Update rewrites an article's content.
func (s *NewsService) Update(ctx context.Context, id string, input NewsInput) (*domain.NewsItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if title == "" || body == "" {
		return nil, ErrNewsInvalid
	}

	item.Title = title
	item.Body = body
	item.ImageURL = optionalMeta(input.ImageURL)
	item.UpdatedAt = s.now()

	if err := s.news.Update(ctx, *item); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNewsNotFound
		}
		return nil, fmt.Errorf("update news: %w", err)
	}

	return item, nil
}

// SetPublished flips the published flag.
func (s *NewsService) SetPublished(ctx context.Context, id string, published bool) error {
	if err := s.news.SetPublished(ctx, strings.TrimSpace(id), published); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNewsNotFound
		}
		return fmt.Errorf("publish news: %w", err)
	}
	return nil
}

// Delete removes an article.
func (s *NewsService) Delete(ctx context.Context, id string) error {
	if err := s.news.Delete(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNewsNotFound
		}
		return fmt.Errorf("delete news: %w", err)
	}
	return nil
}
