package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/pixelpages/internal/domain/outbox"
	"github.com/NordCoder/pixelpages/internal/obs/retry"
	"github.com/NordCoder/pixelpages/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	eventType, key string
	payload        []byte
}

type fakeEvents struct {
	mu   sync.Mutex
	got  []published
	fail int
}

func (f *fakeEvents) PublishAuthEvent(_ context.Context, eventType, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, published{eventType: eventType, key: key, payload: payload})
	return nil
}

func noRetry() retry.Policy {
	return retry.Policy{Attempts: 1, Backoff: retry.ExpoJitter{Base: time.Millisecond}}
}

func enqueue(t *testing.T, repo outbox.Repository, kind outbox.Kind, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	key := uuid.NewString()
	require.NoError(t, repo.Enqueue(context.Background(), key, kind, data))
	return key
}

func TestRunner_TickRelaysAuthEvents(t *testing.T) {
	store := memory.NewStore()
	repo := store.Outbox()
	ev := &fakeEvents{}
	uid := uuid.New()

	enqueue(t, repo, outbox.KindUserRegistered, outbox.UserRegisteredPayload{UserID: uid, Email: "a@example.com"})
	enqueue(t, repo, outbox.KindSessionsRevoked, outbox.SessionsRevokedPayload{UserID: uid, Reason: "logout_all", Revoked: 2})

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()), 1, 10, time.Second, time.Minute)
	require.Equal(t, 2, r.Tick(context.Background()))

	require.Len(t, ev.got, 2)
	require.Equal(t, "user.registered", ev.got[0].eventType)
	require.Equal(t, uid.String(), ev.got[0].key)
	require.Equal(t, "user.sessions_revoked", ev.got[1].eventType)

	for _, m := range repo.Messages() {
		require.Equal(t, outbox.StatusSuccess, m.Status)
	}
	require.Equal(t, 0, r.Tick(context.Background()))
}

func TestRunner_FailedMessageIsRetriedAfterTTL(t *testing.T) {
	store := memory.NewStore()
	repo := store.Outbox()
	ev := &fakeEvents{fail: 1}

	enqueue(t, repo, outbox.KindPasswordChanged, outbox.PasswordChangedPayload{UserID: uuid.New()})

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()), 1, 10, time.Second, 0)
	require.Equal(t, 0, r.Tick(context.Background()))
	require.Equal(t, outbox.StatusInProgress, repo.Messages()[0].Status)

	time.Sleep(time.Millisecond)
	require.Equal(t, 1, r.Tick(context.Background()))
	require.Len(t, ev.got, 1)
	require.Equal(t, outbox.StatusSuccess, repo.Messages()[0].Status)
}

func TestRunner_UnknownKindAndBadPayload(t *testing.T) {
	store := memory.NewStore()
	repo := store.Outbox()
	ev := &fakeEvents{}

	require.NoError(t, repo.Enqueue(context.Background(), "unknown", outbox.Kind(99), []byte(`{"user_id":"x"}`)))
	require.NoError(t, repo.Enqueue(context.Background(), "nouser", outbox.KindUserRegistered, []byte(`{}`)))

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()), 1, 10, time.Second, time.Minute)
	require.Equal(t, 0, r.Tick(context.Background()))
	require.Empty(t, ev.got)
}

func TestRunner_StartStop(t *testing.T) {
	store := memory.NewStore()
	repo := store.Outbox()
	ev := &fakeEvents{}
	enqueue(t, repo, outbox.KindUserRegistered, outbox.UserRegisteredPayload{UserID: uuid.New()})

	ctx, cancel := context.WithCancel(context.Background())
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(ev, noRetry()), 2, 10, 5*time.Millisecond, time.Minute)
	r.Start(ctx)

	require.Eventually(t, func() bool {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		return len(ev.got) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	r.Wait()
}
