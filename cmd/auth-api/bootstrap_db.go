package main

import (
	"context"

	config "github.com/NordCoder/pixelpages/internal/config/auth-api"
	pg "github.com/NordCoder/pixelpages/internal/repository/postgres"
	"go.uber.org/zap"
)

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("db connected",
		zap.Int32("max_conns", cfg.DB.MaxConns),
		zap.Duration("query_timeout", cfg.DB.QueryTimeout),
	)
	return db, nil
}
