// Package memory is a process-local implementation of the repository ports.
// It backs unit tests and single-node development runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	domainauth "github.com/NordCoder/pixelpages/internal/domain/auth"
	"github.com/NordCoder/pixelpages/internal/domain/outbox"
	"github.com/NordCoder/pixelpages/internal/domain/user"
	"github.com/google/uuid"
)

type Store struct {
	// txMu serializes transactions against each other and against plain
	// calls; mu guards the maps for the duration of a single call.
	txMu sync.Mutex
	mu   sync.Mutex

	users   map[uuid.UUID]user.User
	byEmail map[string]uuid.UUID
	tokens  map[string]domainauth.RefreshToken
	outbox  map[string]outbox.Message
	order   []string

	fail error
}

func NewStore() *Store {
	return &Store{
		users:   make(map[uuid.UUID]user.User),
		byEmail: make(map[string]uuid.UUID),
		tokens:  make(map[string]domainauth.RefreshToken),
		outbox:  make(map[string]outbox.Message),
	}
}

func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }
func (s *Store) RefreshTokens() *TokenRepo { return &TokenRepo{s: s} }
func (s *Store) Outbox() *OutboxRepo { return &OutboxRepo{s: s} }
func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }
func (s *Store) Ping(context.Context) error { return s.failure() }

// SetFailure makes every subsequent call return err until cleared with nil.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

type txKey struct{}

func inTx(ctx context.Context) bool { return ctx.Value(txKey{}) != nil }

func (s *Store) lock(ctx context.Context) (func(), error) {
	if !inTx(ctx) {
		s.txMu.Lock()
	}
	s.mu.Lock()
	unlock := func() {
		s.mu.Unlock()
		if !inTx(ctx) {
			s.txMu.Unlock()
		}
	}
	if s.fail != nil {
		unlock()
		return nil, s.fail
	}
	return unlock, nil
}

type snapshot struct {
	users   map[uuid.UUID]user.User
	byEmail map[string]uuid.UUID
	tokens  map[string]domainauth.RefreshToken
	outbox  map[string]outbox.Message
	order   []string
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		users:   maps.Clone(s.users),
		byEmail: maps.Clone(s.byEmail),
		tokens:  maps.Clone(s.tokens),
		outbox:  maps.Clone(s.outbox),
		order:   append([]string(nil), s.order...),
	}
}

func (s *Store) restore(sn snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.byEmail, s.tokens, s.outbox, s.order = sn.users, sn.byEmail, sn.tokens, sn.outbox, sn.order
}

// Transactor gives all-or-nothing semantics by restoring a snapshot when the
// function fails.
type Transactor struct{ s *Store }

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := t.s.failure(); err != nil {
		return err
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	sn := t.s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			t.s.restore(sn)
			panic(p)
		}
		if err != nil {
			t.s.restore(sn)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		return fmt.Errorf("tx: %w", err)
	}
	return nil
}
