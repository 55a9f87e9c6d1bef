package auth_worker_config

import (
	"time"

	"github.com/NordCoder/pixelpages/internal/obs"
	pginfra "github.com/NordCoder/pixelpages/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type KafkaCfg struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int      `mapstructure:"partitions"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
}

type OutboxCfg struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type SweeperCfg struct {
	Tick time.Duration `mapstructure:"tick"`
}

type Server struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	App     App            `mapstructure:"app"`
	DB      pginfra.Config `mapstructure:"db"`
	Kafka   KafkaCfg       `mapstructure:"kafka"`
	Outbox  OutboxCfg      `mapstructure:"outbox"`
	Sweeper SweeperCfg     `mapstructure:"sweeper"`
	Server  Server         `mapstructure:"server"`
	Log     Log            `mapstructure:"log"`
	OTEL    OTEL           `mapstructure:"otel"`
}

// AsOTELConfig falls back to the app name when otel.service_name is unset.
func (c *Config) AsOTELConfig() obs.OTELConfig {
	name := c.OTEL.ServiceName
	if name == "" {
		name = c.App.Name
	}
	return obs.OTELConfig{
		Enable:         c.OTEL.Enable,
		Endpoint:       c.OTEL.OTLPEndpoint,
		ServiceName:    name,
		ServiceVersion: c.App.Version,
		Environment:    c.App.Env,
		SampleRatio:    c.OTEL.SampleRatio,
	}
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoDSN     ErrConfig = "db.dsn is empty"
	ErrNoBrokers ErrConfig = "kafka.brokers is empty"
	ErrNoTopic   ErrConfig = "kafka.topic is empty"
	ErrBadTick   ErrConfig = "sweeper.tick and outbox.wait_time must be positive"
)

func (c *Config) Validate() error {
	switch {
	case c.DB.DSN == "":
		return ErrNoDSN
	case len(c.Kafka.Brokers) == 0:
		return ErrNoBrokers
	case c.Kafka.Topic == "":
		return ErrNoTopic
	case c.Sweeper.Tick <= 0 || c.Outbox.WaitTime <= 0:
		return ErrBadTick
	}
	return nil
}
