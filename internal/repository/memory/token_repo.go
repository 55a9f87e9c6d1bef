package memory

import (
	"context"
	"time"

	"github.com/NordCoder/pixelpages/internal/auth"
	"github.com/NordCoder/pixelpages/internal/domain"
	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"github.com/google/uuid"
)

var _ domainauth.RefreshTokenRepo = (*TokenRepo)(nil)

type TokenRepo struct{ s *Store }

func (r *TokenRepo) Put(ctx context.Context, token string, userID uuid.UUID, createdAt, expiresAt time.Time) (*domainauth.RefreshToken, error) {
	if !expiresAt.After(createdAt) {
		return nil, domainauth.ErrBadExpiry
	}
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	key := auth.HashToken(token)
	if _, ok := r.s.tokens[key]; ok {
		return nil, domain.ErrConflict
	}
	t := domainauth.RefreshToken{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		CreatedAt: createdAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	r.s.tokens[key] = t
	return &t, nil
}

func (r *TokenRepo) FindActive(ctx context.Context, token string, now time.Time) (*domainauth.RefreshToken, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, ok := r.s.tokens[auth.HashToken(token)]
	if !ok || !t.Active(now) {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r *TokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	key := auth.HashToken(token)
	t, ok := r.s.tokens[key]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	r.s.tokens[key] = t
	return true, nil
}

func (r *TokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for k, t := range r.s.tokens {
		if t.UserID == userID && t.Active(now) {
			t.Revoked = true
			r.s.tokens[k] = t
			n++
		}
	}
	return n, nil
}

func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for k, t := range r.s.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored grants for userID, revoked ones
// included.
func (r *TokenRepo) Count(userID uuid.UUID) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}
