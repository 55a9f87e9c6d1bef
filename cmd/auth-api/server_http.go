package main

import (
	"net/http"
	"time"

	config "github.com/NordCoder/pixelpages/internal/config/auth-api"
	"github.com/NordCoder/pixelpages/internal/obs"
	pg "github.com/NordCoder/pixelpages/internal/repository/postgres"
	"github.com/NordCoder/pixelpages/internal/services/auth-api/auth"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, db *pg.DB, authSrv *auth.Server) (*http.Server, error) {
	mux := runtime.NewServeMux()
	if err := authSrv.Mount(mux); err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/", obs.HTTPHandler(mux, "auth-api"))
	root.Handle("/metrics", obs.MetricsHandler())
	root.HandleFunc("/healthz", obs.HealthHandler(db.Ping))

	handler := cors(cfg.CORS.Origins)(root)

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
