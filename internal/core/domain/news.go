package domain

import "time"

// NewsItem is an article managed from the admin panel.
type NewsItem struct {
	ID        string
	Title     string
	Body      string
	ImageURL  *string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
