package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/models"
	"github.com/noah-isme/auth-session-api/internal/repository"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
)

const authResource = "auth"

const invalidCredentialsMessage = "invalid username or password"

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// RefreshTokenStore persists the server side half of refresh tokens.
type RefreshTokenStore interface {
	Insert(ctx context.Context, record *models.RefreshRecord) error
	ReplaceForOwner(ctx context.Context, ownerID, newToken string) error
	Rotate(ctx context.Context, oldToken, newToken, ownerID string) error
	FindByTokenAndOwner(ctx context.Context, token, ownerID string) (*models.RefreshRecord, error)
	Delete(ctx context.Context, token string) error
	DeleteByOwner(ctx context.Context, ownerID string) error
}

type tokenCodec interface {
	SignAccess(claims models.TokenClaims, ttl time.Duration) (string, time.Time, error)
	SignRefresh(claims models.TokenClaims, ttl time.Duration) (string, time.Time, error)
	VerifyAccess(token string) (*models.TokenClaims, error)
	VerifyRefresh(token string) (*models.TokenClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthService drives the session lifecycle: register, login, refresh, logout and access checks.
type AuthService struct {
	users     authUserRepository
	store     RefreshTokenStore
	tokens    tokenCodec
	hasher    passwordHasher
	validator *validator.Validate
	metrics   *MetricsService
	audit     AuditRecorder
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users authUserRepository,
	store RefreshTokenStore,
	tokens tokenCodec,
	hasher passwordHasher,
	validate *validator.Validate,
	metrics *MetricsService,
	audit AuditRecorder,
	logger *zap.Logger,
) *AuthService {
	if validate == nil {
		validate = NewValidator()
	}
	if audit == nil {
		audit = nopAuditRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		store:     store,
		tokens:    tokens,
		hasher:    hasher,
		validator: validate,
		metrics:   metrics,
		audit:     audit,
		logger:    logger,
	}
}

// Register creates an account and opens its first session.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	result, err := s.register(ctx, req, meta)
	s.metrics.RecordAuthEvent(EventRegister, outcome(err))
	return result, err
}

func (s *AuthService) register(ctx context.Context, req models.RegisterRequest, meta models.RequestMeta) (*models.AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	taken, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, appErrors.Store(err, "failed to check username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already taken")
	}
	taken, err = s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Store(err, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{Username: req.Username, Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "username or email already registered")
		}
		return nil, appErrors.Store(err, "failed to create user")
	}

	tokens, err := s.issueSession(ctx, user, func(refresh string) error {
		return s.store.Insert(ctx, &models.RefreshRecord{Token: refresh, UserID: user.ID})
	})
	if err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to roll back user after session issuance failure",
				zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Action: models.AuditActionRegister, Resource: authResource, ResourceID: user.ID, Meta: meta})
	return authenticated(user, tokens), nil
}

// Login authenticates credentials and replaces any session the user already had.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	result, err := s.login(ctx, req, meta)
	s.metrics.RecordAuthEvent(EventLogin, outcome(err))
	return result, err
}

func (s *AuthService) login(ctx context.Context, req models.LoginRequest, meta models.RequestMeta) (*models.AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.audit.Record(ctx, AuditEntry{Action: models.AuditActionLoginFailed, Resource: authResource,
				Details: map[string]interface{}{"username": req.Username}, Meta: meta})
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, invalidCredentialsMessage)
		}
		return nil, appErrors.Store(err, "failed to fetch user")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			return nil, appErrors.Internal(err, "failed to verify password")
		}
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Action: models.AuditActionLoginFailed, Resource: authResource, ResourceID: user.ID, Meta: meta})
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, invalidCredentialsMessage)
	}

	tokens, err := s.issueSession(ctx, user, func(refresh string) error {
		return s.store.ReplaceForOwner(ctx, user.ID, refresh)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Action: models.AuditActionLogin, Resource: authResource, ResourceID: user.ID, Meta: meta})
	return authenticated(user, tokens), nil
}

// Refresh exchanges a recorded refresh token for a new pair and rotates the stored record.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthResult, error) {
	result, err := s.refresh(ctx, refreshToken, meta)
	s.metrics.RecordAuthEvent(EventRefresh, outcome(err))
	return result, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthResult, error) {
	if refreshToken == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired refresh token")
	}

	record, err := s.store.FindByTokenAndOwner(ctx, refreshToken, claims.UserID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load refresh token")
	}
	if record == nil {
		s.logger.Warn("refresh token reuse detected", zap.String("user_id", claims.UserID), zap.String("jti", claims.ID))
		s.metrics.RecordAuthEvent(EventReuse, OutcomeFailure)
		s.audit.Record(ctx, AuditEntry{UserID: claims.UserID, Action: models.AuditActionRefreshReuse, Resource: authResource, ResourceID: claims.UserID, Meta: meta})
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token revoked")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if delErr := s.store.DeleteByOwner(ctx, claims.UserID); delErr != nil {
				s.logger.Warn("failed to drop sessions of missing user", zap.String("user_id", claims.UserID), zap.Error(delErr))
			}
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, appErrors.Store(err, "failed to load user")
	}

	tokens, err := s.issueSession(ctx, user, func(next string) error {
		return s.store.Rotate(ctx, refreshToken, next, user.ID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Action: models.AuditActionRefresh, Resource: authResource, ResourceID: user.ID, Meta: meta})
	return authenticated(user, tokens), nil
}

// Logout deletes the record of refreshToken. It succeeds for unverifiable or unknown tokens.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthResult, error) {
	result, err := s.logout(ctx, refreshToken, meta)
	s.metrics.RecordAuthEvent(EventLogout, outcome(err))
	return result, err
}

func (s *AuthService) logout(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthResult, error) {
	revoked := &models.AuthResult{User: nil, Auth: false, State: models.SessionRevoked}
	if refreshToken == "" {
		return revoked, nil
	}

	if err := s.store.Delete(ctx, refreshToken); err != nil {
		return nil, appErrors.Store(err, "failed to revoke refresh token")
	}

	entry := AuditEntry{Action: models.AuditActionLogout, Resource: authResource, Meta: meta}
	if claims, err := s.tokens.VerifyRefresh(refreshToken); err == nil {
		entry.UserID = claims.UserID
		entry.ResourceID = claims.UserID
	}
	s.audit.Record(ctx, entry)
	return revoked, nil
}

// Authenticate resolves an access token to the identity of a live user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.UserInfo, error) {
	if accessToken == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		message := "invalid access token"
		if errors.Is(err, ErrTokenExpired) {
			message = "access token expired"
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, message)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Store(err, "failed to load user")
	}
	return user.Info(), nil
}

// issueSession mints a token pair for user and records the refresh half through persist.
// No tokens leave this function unless persist succeeded.
func (s *AuthService) issueSession(ctx context.Context, user *models.User, persist func(refresh string) error) (*models.TokenPair, error) {
	claims := models.TokenClaims{UserID: user.ID}

	access, accessExp, err := s.tokens.SignAccess(claims, s.tokens.AccessTTL())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	refresh, refreshExp, err := s.tokens.SignRefresh(claims, s.tokens.RefreshTTL())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}

	if err := persist(refresh); err != nil {
		if errors.Is(err, repository.ErrRefreshRecordNotFound) {
			s.logger.Warn("refresh rotation lost to a concurrent request", zap.String("user_id", user.ID))
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token revoked")
		}
		return nil, appErrors.Store(err, "failed to persist refresh token")
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func authenticated(user *models.User, tokens *models.TokenPair) *models.AuthResult {
	return &models.AuthResult{User: user.Info(), Auth: true, State: models.SessionAuthenticated, Tokens: tokens}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
