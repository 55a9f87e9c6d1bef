package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/pixelpages/internal/domain"
	"github.com/NordCoder/pixelpages/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, full_name, is_active, is_superuser, created_at, updated_at`

const (
	qUserInsert = `
INSERT INTO users (email, password_hash, full_name, is_active, is_superuser)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserUpdatePassword = `
UPDATE users
SET password_hash = $3,
    updated_at    = NOW()
WHERE id = $1 AND password_hash = $2;`

	qUserExists = `
SELECT EXISTS (SELECT 1 FROM users WHERE id = $1);`

	qUserSetActive = `
UPDATE users
SET is_active  = $2,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns + `;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qUserInsert, u.Email, u.PasswordHash, u.FullName, u.IsActive, u.IsSuperuser)
	if err := scanUser(row, u); err != nil {
		return mapErr("user insert", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, mapErr("user by id", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserByEmail, email), &u); err != nil {
		return nil, mapErr("user by email", err)
	}
	return &u, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, oldHash, newHash string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q := r.db.execQueryer(ctx)
	tag, err := q.Exec(ctx, qUserUpdatePassword, id, oldHash, newHash)
	if err != nil {
		return mapErr("user update password", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, qUserExists, id).Scan(&exists); err != nil {
		return mapErr("user exists", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("user update password: %w", domain.ErrConflict)
}

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.execQueryer(ctx).QueryRow(ctx, qUserSetActive, id, active), &u); err != nil {
		return nil, mapErr("user set active", err)
	}
	return &u, nil
}

func scanUser(row pgx.Row, out *user.User) error {
	err := row.Scan(
		&out.ID, &out.Email, &out.PasswordHash, &out.FullName,
		&out.IsActive, &out.IsSuperuser, &out.CreatedAt, &out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err != nil {
		return fmt.Errorf("scan user: %w", err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return nil
}
