package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes the two signed token flavours.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// SessionState is the lifecycle position of a session lineage.
type SessionState string

const (
	SessionAnonymous     SessionState = "ANONYMOUS"
	SessionAuthenticated SessionState = "AUTHENTICATED"
	SessionAccessExpired SessionState = "ACCESS_EXPIRED"
	SessionRevoked       SessionState = "REVOKED"
)

// RegisterRequest holds the payload for creating an account.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=5,max=30"`
	Name            string `json:"name" validate:"required,max=30"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	IP              string `json:"-"`
	UserAgent       string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required,min=5,max=30"`
	Password  string `json:"password" validate:"required,max=72"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RequestMeta carries client details used for auditing.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// TokenPair is a freshly issued access/refresh combination.
type TokenPair struct {
	AccessToken      string    `json:"-"`
	RefreshToken     string    `json:"-"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResult is returned by every session-producing or session-ending operation.
type AuthResult struct {
	User   *UserInfo    `json:"user"`
	Auth   bool         `json:"auth"`
	State  SessionState `json:"-"`
	Tokens *TokenPair   `json:"-"`
}

// TokenClaims is the JWT payload shared by access and refresh tokens.
type TokenClaims struct {
	UserID string    `json:"user_id"`
	Kind   TokenKind `json:"kind"`
	jwt.RegisteredClaims
}
