package postgres

import (
	"context"
	"time"

	"github.com/NordCoder/pixelpages/internal/auth"
	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"github.com/google/uuid"
)

var _ domainauth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

// RefreshTokenRepo keeps only the digest of each refresh token; the raw
// value never reaches the table.
type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (token, user_id, created_at, expires_at, is_revoked)
VALUES ($1, $2, $3, $4, FALSE)
RETURNING id;`

	qRTFindActive = `
SELECT id, user_id, created_at, expires_at, is_revoked
FROM refresh_tokens
WHERE token = $1 AND is_revoked = FALSE AND expires_at > $2;`

	qRTRevoke = `
UPDATE refresh_tokens
SET is_revoked = TRUE
WHERE token = $1 AND is_revoked = FALSE;`

	qRTRevokeAll = `
UPDATE refresh_tokens
SET is_revoked = TRUE
WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2;`

	qRTPurge = `
DELETE FROM refresh_tokens
WHERE expires_at < $1;`
)

func (r *RefreshTokenRepo) Put(ctx context.Context, token string, userID uuid.UUID, createdAt, expiresAt time.Time) (*domainauth.RefreshToken, error) {
	if !expiresAt.After(createdAt) {
		return nil, domainauth.ErrBadExpiry
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	t := &domainauth.RefreshToken{
		Token:     token,
		UserID:    userID,
		CreatedAt: createdAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRTCreate, auth.HashToken(token), userID, t.CreatedAt, t.ExpiresAt).
		Scan(&t.ID); err != nil {
		return nil, mapErr("refresh token insert", err)
	}
	return t, nil
}

func (r *RefreshTokenRepo) FindActive(ctx context.Context, token string, now time.Time) (*domainauth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	t := domainauth.RefreshToken{Token: token}
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRTFindActive, auth.HashToken(token), now.UTC()).
		Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.Revoked); err != nil {
		return nil, mapErr("refresh token find", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return &t, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, token string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevoke, auth.HashToken(token))
	if err != nil {
		return false, mapErr("refresh token revoke", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeAll, userID, now.UTC())
	if err != nil {
		return 0, mapErr("refresh token revoke all", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTPurge, now.UTC())
	if err != nil {
		return 0, mapErr("refresh token purge", err)
	}
	return tag.RowsAffected(), nil
}
