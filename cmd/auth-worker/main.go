package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/pixelpages/internal/config/auth-worker"
	"github.com/NordCoder/pixelpages/internal/obs"
	"github.com/NordCoder/pixelpages/internal/obs/retry"
	"github.com/NordCoder/pixelpages/internal/outbox"
	"github.com/NordCoder/pixelpages/internal/repository/kafka"
	pg "github.com/NordCoder/pixelpages/internal/repository/postgres"
	"github.com/NordCoder/pixelpages/internal/services/auth-worker/sweeper"

	"go.uber.org/zap"
)

func wire(cfg *config.Config, db *pg.DB, events *kafka.AuthEventsKafka, l *zap.Logger) (*outbox.Runner, *sweeper.Runner) {
	dispatch := outbox.MakeGlobalOutboxHandler(events, retry.DefaultKafkaPolicy(l))
	outboxRunner := outbox.NewOutboxRunner(
		l,
		pg.NewOutboxRepo(db),
		dispatch,
		cfg.Outbox.Workers,
		cfg.Outbox.BatchSize,
		cfg.Outbox.WaitTime,
		cfg.Outbox.InProgressTTL,
	)

	uc := sweeper.NewUC(pg.NewRefreshTokenRepo(db), nil)
	return outboxRunner, sweeper.New(l, uc, &cfg.Sweeper)
}

func main() {
	// init
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting auth-worker",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Duration("sweep_every", cfg.Sweeper.Tick),
	)

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	// kafka
	if err := kafka.EnsureTopic(root, cfg.Kafka.Brokers, kafka.TopicSpec{
		Name:              cfg.Kafka.Topic,
		NumPartitions:     cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}, l); err != nil {
		l.Warn("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}

	prod := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	defer func() { _ = prod.Close() }()

	events := kafka.NewAuthEventsKafka(prod)

	// wiring
	outboxRunner, sweep := wire(cfg, db, events, l)

	// start
	outboxRunner.Start(root)
	errCh := make(chan error, 1)
	go func() { errCh <- sweep.Run(root) }()

	// loop
	select {
	case <-root.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("sweeper error", zap.Error(err))
		}
	}
	stop()
	outboxRunner.Wait()

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
