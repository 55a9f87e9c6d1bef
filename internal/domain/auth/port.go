package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrBadExpiry rejects a grant whose expiry is not after its creation.
var ErrBadExpiry = errors.New("refresh token expires before it is created")

type RefreshTokenRepo interface {
	// Put stores a new active grant. A colliding token yields domain.ErrConflict.
	Put(ctx context.Context, token string, userID uuid.UUID, createdAt, expiresAt time.Time) (*RefreshToken, error)
	// FindActive returns domain.ErrNotFound for missing, revoked and expired
	// grants alike.
	FindActive(ctx context.Context, token string, now time.Time) (*RefreshToken, error)
	// Revoke reports whether this call performed the transition.
	Revoke(ctx context.Context, token string) (bool, error)
	// RevokeAll revokes grants of userID that are active at now.
	RevokeAll(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	// PurgeExpired deletes grants with expires_at strictly before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
