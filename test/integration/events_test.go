//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	authn "github.com/NordCoder/pixelpages/internal/auth"
	"github.com/NordCoder/pixelpages/internal/domain/outbox"
	"github.com/NordCoder/pixelpages/internal/obs/retry"
	outboxrunner "github.com/NordCoder/pixelpages/internal/outbox"
	"github.com/NordCoder/pixelpages/internal/repository/kafka"
	pg "github.com/NordCoder/pixelpages/internal/repository/postgres"
	"github.com/NordCoder/pixelpages/internal/services/auth-api/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthEvents_RegisterReachesKafka(t *testing.T) {
	cfg := LoadCfg()
	EnsureTopic(t, cfg.KafkaBootstrap, cfg.EventsTopic)
	db := PGX(t, cfg.DBDSN)
	log := zap.NewNop()

	hasher, err := authn.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := authn.NewTokenCodec([]byte(strings.Repeat("i", authn.MinSecretLen)), nil)
	require.NoError(t, err)

	uc := auth.NewUseCase(log, auth.Deps{
		Tx:     pg.NewTransactor(db, log),
		Users:  pg.NewUserRepo(db),
		Tokens: pg.NewRefreshTokenRepo(db),
		Outbox: pg.NewOutboxRepo(db),
		Hasher: hasher,
		Codec:  codec,
	}, auth.Config{AccessTTL: time.Minute, RefreshTTL: time.Hour})

	ctx := context.Background()
	email := uuid.NewString() + "@it.example.com"
	u, err := uc.Register(ctx, email, "pw1", nil)
	require.NoError(t, err)

	s, err := uc.Login(ctx, email, "pw1")
	require.NoError(t, err)
	n, err := uc.LogoutAll(ctx, s.AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	prod := kafka.NewProducer([]string{cfg.KafkaBootstrap}, cfg.EventsTopic).WithLogger(log)
	defer func() { _ = prod.Close() }()
	runner := outboxrunner.NewOutboxRunner(log, pg.NewOutboxRepo(db),
		outboxrunner.MakeGlobalOutboxHandler(kafka.NewAuthEventsKafka(prod), retry.DefaultKafkaPolicy(log)),
		1, 100, 100*time.Millisecond, time.Minute)

	delivered := 0
	require.Eventually(t, func() bool {
		delivered += runner.Tick(ctx)
		return delivered >= 2
	}, 20*time.Second, 200*time.Millisecond)

	ev, ok := ReadAuthEvent(t, cfg.KafkaBootstrap, cfg.EventsTopic, u.ID.String(), 20*time.Second)
	require.True(t, ok, "no event for user %s", u.ID)
	require.Equal(t, outbox.KindUserRegistered.String(), ev.Type)

	var p outbox.UserRegisteredPayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	require.Equal(t, email, p.Email)
}
