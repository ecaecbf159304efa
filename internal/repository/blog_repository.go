package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/auth-session-api/internal/dto"
	"github.com/noah-isme/auth-session-api/internal/models"
)

const blogColumns = `id, title, description, url, url_to_image, author, published_at, user_id, created_at, updated_at`

// BlogRepository provides database access for blog entries.
type BlogRepository struct {
	db *sqlx.DB
}

// NewBlogRepository creates a new BlogRepository.
func NewBlogRepository(db *sqlx.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

// Create inserts a new blog entry. A url that is already stored yields ErrDuplicate.
func (r *BlogRepository) Create(ctx context.Context, blog *models.Blog) error {
	if blog.ID == "" {
		blog.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = now
	}
	blog.UpdatedAt = now

	const query = `INSERT INTO blogs (` + blogColumns + `) VALUES (:id, :title, :description, :url, :url_to_image, :author, :published_at, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blog); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create blog: %w", ErrDuplicate)
		}
		return fmt.Errorf("create blog: %w", err)
	}
	return nil
}

// FindByID returns a blog by identifier. A missing blog yields sql.ErrNoRows.
func (r *BlogRepository) FindByID(ctx context.Context, id string) (*models.Blog, error) {
	const query = `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1 LIMIT 1`
	var blog models.Blog
	if err := r.db.GetContext(ctx, &blog, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find blog by id: %w", err)
	}
	return &blog, nil
}

// FindByURL returns a blog by its source url. A missing blog yields sql.ErrNoRows.
func (r *BlogRepository) FindByURL(ctx context.Context, url string) (*models.Blog, error) {
	const query = `SELECT ` + blogColumns + ` FROM blogs WHERE url = $1 LIMIT 1`
	var blog models.Blog
	if err := r.db.GetContext(ctx, &blog, query, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find blog by url: %w", err)
	}
	return &blog, nil
}

// ListByUser returns a page of blogs for the author with the total count.
func (r *BlogRepository) ListByUser(ctx context.Context, filter dto.BlogFilter) ([]models.Blog, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s FROM blogs WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, blogColumns, pageSize, offset)
	var blogs []models.Blog
	if err := r.db.SelectContext(ctx, &blogs, listQuery, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list blogs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM blogs WHERE user_id = $1`, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count blogs: %w", err)
	}
	return blogs, total, nil
}

// Delete removes a blog entry.
func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	return nil
}
