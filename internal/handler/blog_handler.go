package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-session-api/internal/dto"
	"github.com/noah-isme/auth-session-api/internal/middleware"
	"github.com/noah-isme/auth-session-api/internal/models"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
	"github.com/noah-isme/auth-session-api/pkg/response"
)

type blogService interface {
	Create(ctx context.Context, userID string, req dto.CreateBlogRequest, meta models.RequestMeta) (*dto.BlogItem, bool, error)
	Get(ctx context.Context, id string) (*dto.BlogItem, error)
	ListByUser(ctx context.Context, filter dto.BlogFilter) ([]dto.BlogItem, *models.Pagination, error)
	Delete(ctx context.Context, id, userID string, meta models.RequestMeta) error
}

// BlogHandler exposes blog endpoints to authenticated users.
type BlogHandler struct {
	service blogService
}

// NewBlogHandler constructs a blog handler.
func NewBlogHandler(svc blogService) *BlogHandler {
	return &BlogHandler{service: svc}
}

// Create godoc
// @Summary Add blog
// @Tags Blogs
// @Accept json
// @Produce json
// @Param payload body dto.CreateBlogRequest true "Blog payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "Blog with the same url already added"
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /blogs [post]
func (h *BlogHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateBlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blog payload"))
		return
	}

	item, created, err := h.service.Create(c.Request.Context(), user.ID, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !created {
		response.JSON(c, http.StatusOK, item, nil, map[string]interface{}{"message": "already added"})
		return
	}
	response.Created(c, item)
}

// Get godoc
// @Summary Get blog
// @Tags Blogs
// @Produce json
// @Param id path string true "Blog ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blogs/{id} [get]
func (h *BlogHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// ListByUser godoc
// @Summary List blogs of a user
// @Tags Blogs
// @Produce json
// @Param userId path string true "User ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /blogs/user/{userId} [get]
func (h *BlogHandler) ListByUser(c *gin.Context) {
	userID, err := uuidParam(c, "userId")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := dto.BlogFilter{UserID: userID}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, pagination, err := h.service.ListByUser(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Delete godoc
// @Summary Delete blog
// @Tags Blogs
// @Param id path string true "Blog ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blogs/{id} [delete]
func (h *BlogHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, user.ID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
