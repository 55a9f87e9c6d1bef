package memory

import (
	"context"
	"errors"
	"time"

	"github.com/NordCoder/pixelpages/internal/domain/outbox"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

type OutboxRepo struct{ s *Store }

func (r *OutboxRepo) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.outbox[key]; ok {
		return nil
	}
	now := time.Now().UTC()
	r.s.outbox[key] = outbox.Message{
		IdempotencyKey: key,
		Kind:           kind,
		Data:           append([]byte(nil), data...),
		Status:         outbox.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.order = append(r.s.order, key)
	return nil
}

func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	var out []outbox.Message
	for _, key := range r.s.order {
		if len(out) == batch {
			break
		}
		m := r.s.outbox[key]
		stale := m.Status == outbox.StatusInProgress && m.UpdatedAt.Before(now.Add(-inProgressTTL))
		if m.Status != outbox.StatusCreated && !stale {
			continue
		}
		m.Status = outbox.StatusInProgress
		m.UpdatedAt = now
		r.s.outbox[key] = m
		out = append(out, m)
	}
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	unlock, err := r.s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	for _, k := range keys {
		m, ok := r.s.outbox[k]
		if !ok {
			continue
		}
		m.Status = outbox.StatusSuccess
		m.UpdatedAt = now
		r.s.outbox[k] = m
	}
	return nil
}

// Messages returns every enqueued message in insertion order.
func (r *OutboxRepo) Messages() []outbox.Message {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]outbox.Message, 0, len(r.s.order))
	for _, k := range r.s.order {
		out = append(out, r.s.outbox[k])
	}
	return out
}
