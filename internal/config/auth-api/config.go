package auth_api_config

import (
	"slices"
	"time"

	"github.com/NordCoder/pixelpages/internal/obs"
	pg "github.com/NordCoder/pixelpages/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Auth struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookiePath   string        `mapstructure:"cookie_path"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type CORS struct {
	Origins []string `mapstructure:"origins"`
}

type Config struct {
	App    App       `mapstructure:"app"`
	Server Server    `mapstructure:"server"`
	DB     pg.Config `mapstructure:"db"`
	OTEL   OTEL      `mapstructure:"otel"`
	Log    Log       `mapstructure:"log"`
	Auth   Auth      `mapstructure:"auth"`
	CORS   CORS      `mapstructure:"cors"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

const (
	ErrNoDSN        ErrConfig = "db.dsn is empty"
	ErrWeakSecret   ErrConfig = "auth.jwt_secret must be at least 32 bytes"
	ErrBadTTL       ErrConfig = "auth.access_ttl and auth.refresh_ttl must be positive"
	ErrTTLOrder     ErrConfig = "auth.refresh_ttl must exceed auth.access_ttl"
	ErrBcryptCost   ErrConfig = "auth.bcrypt_cost must be within [4, 31]"
	ErrNoCookieName ErrConfig = "auth.cookie_name is empty"
	ErrCORSWildcard ErrConfig = "cors.origins must list origins explicitly, \"*\" is not allowed with credentials"
)

func (c *Config) Validate() error {
	switch {
	case c.DB.DSN == "":
		return ErrNoDSN
	case len(c.Auth.JWTSecret) < 32:
		return ErrWeakSecret
	case c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0:
		return ErrBadTTL
	case c.Auth.RefreshTTL <= c.Auth.AccessTTL:
		return ErrTTLOrder
	case c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31:
		return ErrBcryptCost
	case c.Auth.CookieName == "":
		return ErrNoCookieName
	case slices.Contains(c.CORS.Origins, "*"):
		return ErrCORSWildcard
	}
	return nil
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
