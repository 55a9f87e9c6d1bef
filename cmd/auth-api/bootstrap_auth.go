package main

import (
	"fmt"

	authn "github.com/NordCoder/pixelpages/internal/auth"
	config "github.com/NordCoder/pixelpages/internal/config/auth-api"
	pg "github.com/NordCoder/pixelpages/internal/repository/postgres"
	"github.com/NordCoder/pixelpages/internal/services/auth-api/auth"
	"go.uber.org/zap"
)

func buildAuth(cfg *config.Config, logger *zap.Logger, db *pg.DB) (*auth.Server, error) {
	hasher, err := authn.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	codec, err := authn.NewTokenCodec([]byte(cfg.Auth.JWTSecret), nil)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	uc := auth.NewUseCase(logger, auth.Deps{
		Tx:     pg.NewTransactor(db, logger),
		Users:  pg.NewUserRepo(db),
		Tokens: pg.NewRefreshTokenRepo(db),
		Outbox: pg.NewOutboxRepo(db),
		Hasher: hasher,
		Codec:  codec,
	}, auth.Config{
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})

	return auth.NewServer(uc, auth.Opts{
		Logger:       logger,
		CookieName:   cfg.Auth.CookieName,
		CookieDomain: cfg.Auth.CookieDomain,
		CookiePath:   cfg.Auth.CookiePath,
		CookieSecure: cfg.Auth.CookieSecure,
		RefreshTTL:   cfg.Auth.RefreshTTL,
	}), nil
}
