package user

import (
	"context"

	"github.com/google/uuid"
)

// Repo persists identities. Create returns domain.ErrConflict when the email
// is already taken; lookups return domain.ErrNotFound. UpdatePassword only
// replaces the hash while it still equals oldHash and returns
// domain.ErrConflict otherwise.
type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, oldHash, newHash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
}
