package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/odysseycup/admin-gate/internal/core/domain"
	"github.com/odysseycup/admin-gate/internal/repository"
)

func TestNewsRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewNewsRepository(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"id", "title", "body", "image_url", "published", "created_at", "updated_at",
	}).AddRow(
		"news-2", "Second", "Body two", nil, true, now, now,
	).AddRow(
		"news-1", "First", "Body one", "https://cdn.example.com/a.png", false, now.Add(-time.Hour), now.Add(-time.Hour),
	)

	mock.ExpectQuery(`SELECT .+ FROM gate\.news ORDER BY created_at DESC`).
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two items, got %d", len(items))
	}
	if items[0].ID != "news-2" {
		t.Fatalf("expected newest first, got %s", items[0].ID)
	}
	if items[0].ImageURL != nil {
		t.Fatalf("expected nil image url, got %v", items[0].ImageURL)
	}
	if items[1].ImageURL == nil || *items[1].ImageURL != "https://cdn.example.com/a.png" {
		t.Fatalf("expected image url populated, got %v", items[1].ImageURL)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewsRepository_ListPublishedOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewNewsRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM gate\.news WHERE published = \$1 ORDER BY created_at DESC`).
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "body", "image_url", "published", "created_at", "updated_at",
		}))

	items, err := repo.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewsRepository_UpdateMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewNewsRepository(mock)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE gate\.news`).
		WithArgs("Title", "Body", nil, now, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), domain.NewsItem{
		ID:        "missing",
		Title:     "Title",
		Body:      "Body",
		UpdatedAt: now,
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewsRepository_DeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewNewsRepository(mock)

	mock.ExpectExec(`DELETE FROM gate\.news`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
