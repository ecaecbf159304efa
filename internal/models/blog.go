package models

import "time"

// Blog is an entry authored by a user.
type Blog struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	URL         string    `db:"url" json:"url"`
	URLToImage  string    `db:"url_to_image" json:"url_to_image"`
	Author      string    `db:"author" json:"author"`
	PublishedAt string    `db:"published_at" json:"published_at"`
	UserID      string    `db:"user_id" json:"user_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
