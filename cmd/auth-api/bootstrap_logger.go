package main

import (
	config "github.com/NordCoder/pixelpages/internal/config/auth-api"
	"github.com/NordCoder/pixelpages/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.AsLoggerConfig())
}
