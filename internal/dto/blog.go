package dto

import "github.com/noah-isme/auth-session-api/internal/models"

// CreateBlogRequest defines the payload for publishing a blog entry.
type CreateBlogRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	URLToImage  string `json:"urlToImage" validate:"required"`
	PublishedAt string `json:"publishedAt" validate:"required"`
	Author      string `json:"author" validate:"required"`
}

// BlogItem is the outward shape of a blog entry.
type BlogItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	Author      string `json:"author"`
	PublishedAt string `json:"publishedAt"`
	User        string `json:"user"`
}

// BlogFilter narrows list queries.
type BlogFilter struct {
	UserID   string
	Page     int
	PageSize int
}

// NewBlogItem maps a stored blog to its response shape.
func NewBlogItem(b *models.Blog) BlogItem {
	return BlogItem{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		URL:         b.URL,
		URLToImage:  b.URLToImage,
		Author:      b.Author,
		PublishedAt: b.PublishedAt,
		User:        b.UserID,
	}
}
