package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/auth-session-api/internal/dto"
	"github.com/noah-isme/auth-session-api/internal/models"
)

var blogRowColumns = []string{"id", "title", "description", "url", "url_to_image", "author", "published_at", "user_id", "created_at", "updated_at"}

func TestBlogCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBlogRepository(db)

	mock.ExpectExec("INSERT INTO blogs").WillReturnResult(sqlmock.NewResult(1, 1))

	blog := &models.Blog{Title: "t", URL: "https://x.test/a", UserID: "u1"}
	require.NoError(t, repo.Create(context.Background(), blog))
	assert.NotEmpty(t, blog.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlogListByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBlogRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM blogs WHERE user_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(blogRowColumns).AddRow("b1", "t", "d", "https://x.test/a", "img", "me", "2024-01-01", "u1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM blogs WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	blogs, total, err := repo.ListByUser(context.Background(), dto.BlogFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, blogs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlogCreateDuplicateURL(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBlogRepository(db)

	mock.ExpectExec("INSERT INTO blogs").WillReturnError(&pq.Error{Code: "23505", Constraint: "blogs_url_key"})

	err := repo.Create(context.Background(), &models.Blog{Title: "t", URL: "https://x.test/a", UserID: "u1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
