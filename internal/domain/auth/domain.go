package auth

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type AccessClaims struct {
	Subject   uuid.UUID
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type RefreshClaims struct {
	Subject   uuid.UUID
	Type      TokenType
	ID        uuid.UUID // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshToken is the durable grant behind a refresh token. Revoked only ever
// goes from false to true.
type RefreshToken struct {
	ID        uuid.UUID
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Active reports whether the grant can still be used at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
