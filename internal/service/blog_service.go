package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/dto"
	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/internal/repository"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
)

const (
	blogResource    = "blog"
	maxBlogPage     = 10000
	defaultPageSize = 20
	maxPageSize     = 100
)

func blogItemKey(id string) string { return "blog:item:" + id }

func blogListKey(filter dto.BlogFilter) string {
	return fmt.Sprintf("blog:user:%s:%d:%d", filter.UserID, filter.Page, filter.PageSize)
}

func blogListPattern(userID string) string { return "blog:user:" + userID + ":*" }

type cachedBlogPage struct {
	Items      []dto.BlogItem    `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

type blogRepository interface {
	Create(ctx context.Context, blog *models.Blog) error
	FindByID(ctx context.Context, id string) (*models.Blog, error)
	FindByURL(ctx context.Context, url string) (*models.Blog, error)
	ListByUser(ctx context.Context, filter dto.BlogFilter) ([]models.Blog, int, error)
	Delete(ctx context.Context, id string) error
}

// BlogService manages blog entries owned by authenticated users.
type BlogService struct {
	repo      blogRepository
	validator *validator.Validate
	audit     AuditRecorder
	cache     *CacheService
	logger    *zap.Logger
}

// BlogOption customises a BlogService.
type BlogOption func(*BlogService)

// WithBlogCache serves reads through cache and invalidates it on writes.
func WithBlogCache(cache *CacheService) BlogOption {
	return func(s *BlogService) { s.cache = cache }
}

// NewBlogService constructs a BlogService.
func NewBlogService(repo blogRepository, validate *validator.Validate, audit AuditRecorder, logger *zap.Logger, opts ...BlogOption) *BlogService {
	if validate == nil {
		validate = NewValidator()
	}
	if audit == nil {
		audit = nopAuditRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &BlogService{repo: repo, validator: validate, audit: audit, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create stores a blog for userID. An entry with the same url is returned as is and created is false.
func (s *BlogService) Create(ctx context.Context, userID string, req dto.CreateBlogRequest, meta models.RequestMeta) (item *dto.BlogItem, created bool, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blog payload")
	}

	existing, err := s.repo.FindByURL(ctx, req.URL)
	switch {
	case err == nil:
		out := dto.NewBlogItem(existing)
		return &out, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, appErrors.Store(err, "failed to check blog url")
	}

	blog := &models.Blog{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		URLToImage:  req.URLToImage,
		Author:      req.Author,
		PublishedAt: req.PublishedAt,
		UserID:      userID,
	}
	if err := s.repo.Create(ctx, blog); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent request stored the same url first.
			winner, findErr := s.repo.FindByURL(ctx, req.URL)
			if findErr == nil {
				out := dto.NewBlogItem(winner)
				return &out, false, nil
			}
			return nil, false, appErrors.Store(findErr, "failed to load blog")
		}
		return nil, false, appErrors.Store(err, "failed to create blog")
	}
	s.cache.Invalidate(ctx, nil, blogListPattern(userID))

	s.audit.Record(ctx, AuditEntry{UserID: userID, Action: models.AuditActionBlogCreate, Resource: blogResource, ResourceID: blog.ID,
		Details: map[string]interface{}{"url": blog.URL}, Meta: meta})
	out := dto.NewBlogItem(blog)
	return &out, true, nil
}

// Get returns a single blog.
func (s *BlogService) Get(ctx context.Context, id string) (*dto.BlogItem, error) {
	var cached dto.BlogItem
	if s.cache.Get(ctx, blogItemKey(id), &cached) {
		return &cached, nil
	}

	blog, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blog not found")
		}
		return nil, appErrors.Store(err, "failed to load blog")
	}
	out := dto.NewBlogItem(blog)
	s.cache.Set(ctx, blogItemKey(id), out, 0)
	return &out, nil
}

// ListByUser returns a page of the user's blogs.
func (s *BlogService) ListByUser(ctx context.Context, filter dto.BlogFilter) ([]dto.BlogItem, *models.Pagination, error) {
	if filter.UserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Page > maxBlogPage {
		filter.Page = maxBlogPage
	}
	if filter.PageSize <= 0 || filter.PageSize > maxPageSize {
		filter.PageSize = defaultPageSize
	}

	key := blogListKey(filter)
	var cached cachedBlogPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, &cached.Pagination, nil
	}

	blogs, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list blogs")
	}
	items := make([]dto.BlogItem, 0, len(blogs))
	for i := range blogs {
		items = append(items, dto.NewBlogItem(&blogs[i]))
	}
	page := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	s.cache.Set(ctx, key, cachedBlogPage{Items: items, Pagination: page}, 0)
	return items, &page, nil
}

// Delete removes a blog owned by userID.
func (s *BlogService) Delete(ctx context.Context, id, userID string, meta models.RequestMeta) error {
	blog, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blog not found")
		}
		return appErrors.Store(err, "failed to load blog")
	}
	if blog.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "blog belongs to another user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Store(err, "failed to delete blog")
	}
	s.cache.Invalidate(ctx, []string{blogItemKey(id)}, blogListPattern(blog.UserID))
	s.audit.Record(ctx, AuditEntry{UserID: userID, Action: models.AuditActionBlogDelete, Resource: blogResource, ResourceID: id, Meta: meta})
	return nil
}
