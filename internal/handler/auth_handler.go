package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-session-api/internal/middleware"
	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/pkg/config"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
	"github.com/noah-isme/auth-session-api/pkg/response"
)

type sessionService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthResult, error)
	Logout(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthResult, error)
}

// RefreshTokenRequest carries a refresh token for clients that do not use cookies.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthHandler wires HTTP endpoints to the session service.
type AuthHandler struct {
	service sessionService
	cookies config.CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc sessionService, cookies config.CookieConfig) *AuthHandler {
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &AuthHandler{service: svc, cookies: cookies}
}

// Register godoc
// @Summary Register account
// @Description Create an account and start a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Register payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookies(c, res.Tokens)
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookies(c, res.Tokens)
	response.OK(c, res)
}

// Refresh godoc
// @Summary Refresh session
// @Description Exchange the refresh token (cookie or body) for a rotated token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body RefreshTokenRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
// @Router /auth/refresh [get]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := refreshTokenFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), token, requestMeta(c))
	if err != nil {
		if errors.Is(err, appErrors.ErrUnauthorized) {
			h.clearSessionCookies(c)
		}
		response.Error(c, err)
		return
	}

	h.setSessionCookies(c, res.Tokens)
	response.OK(c, res)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the refresh token and clear session cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body RefreshTokenRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := refreshTokenFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Logout(c.Request.Context(), token, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.clearSessionCookies(c)
	response.OK(c, res)
}

// Me godoc
// @Summary Current identity
// @Description Return the authenticated user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.OK(c, models.AuthResult{User: user, Auth: true})
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, tokens *models.TokenPair) {
	if tokens == nil {
		return
	}
	maxAge := int(h.cookies.MaxAge.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, tokens.AccessToken, maxAge, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, tokens.RefreshToken, maxAge, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}

// refreshTokenFrom prefers the refresh cookie and falls back to a JSON body.
func refreshTokenFrom(c *gin.Context) (string, error) {
	if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && cookie != "" {
		return cookie, nil
	}
	if c.Request.ContentLength == 0 {
		return "", nil
	}
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload")
	}
	return req.RefreshToken, nil
}
