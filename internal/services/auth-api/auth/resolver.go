package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	authn "github.com/NordCoder/pixelpages/internal/auth"
	"github.com/NordCoder/pixelpages/internal/domain"
	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"github.com/NordCoder/pixelpages/internal/domain/user"
)

var (
	ErrTokenInvalid     = errors.New("token invalid")
	ErrIdentityMissing  = errors.New("identity missing")
	ErrIdentityInactive = errors.New("identity inactive")
)

// Resolver turns bearer credentials into an identity or a refresh grant.
// It is called once at the start of each authenticated operation.
type Resolver struct {
	codec  *authn.TokenCodec
	users  user.Repo
	tokens domainauth.RefreshTokenRepo
	now    func() time.Time
}

func NewResolver(codec *authn.TokenCodec, users user.Repo, tokens domainauth.RefreshTokenRepo, now func() time.Time) *Resolver {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Resolver{codec: codec, users: users, tokens: tokens, now: now}
}

func (r *Resolver) ResolveAccess(ctx context.Context, token string) (*user.User, error) {
	claims, err := r.codec.VerifyAccess(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	u, err := r.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrIdentityMissing
	}
	if err != nil {
		return nil, fmt.Errorf("resolve access: %w", err)
	}
	if !u.IsActive {
		return nil, ErrIdentityInactive
	}
	return u, nil
}

// ResolveRefresh requires a valid signature, the refresh type, an unexpired
// exp claim and a live store record owned by the token's subject.
func (r *Resolver) ResolveRefresh(ctx context.Context, token string) (*domainauth.RefreshClaims, error) {
	claims, err := r.codec.VerifyRefresh(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	rec, err := r.tokens.FindActive(ctx, token, r.now())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("resolve refresh: %w", err)
	}
	if rec.UserID != claims.Subject {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
