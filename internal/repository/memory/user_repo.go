package memory

import (
	"context"
	"time"

	"github.com/NordCoder/pixelpages/internal/domain"
	"github.com/NordCoder/pixelpages/internal/domain/user"
	"github.com/google/uuid"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.byEmail[u.Email]; ok {
		return domain.ErrConflict
	}
	now := time.Now().UTC()
	u.ID = uuid.New()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	r.s.byEmail[u.Email] = u.ID
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	id, ok := r.s.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, oldHash, newHash string) error {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if u.PasswordHash != oldHash {
		return domain.ErrConflict
	}
	u.PasswordHash = newHash
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return nil
}

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*user.User, error) {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return &u, nil
}

// Promote marks id as superuser. Test and bootstrap helper; the HTTP surface
// has no way to grant it.
func (r *UserRepo) Promote(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsSuperuser = true
	r.s.users[id] = u
	return nil
}
