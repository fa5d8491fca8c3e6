package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Guest store drivers.
const (
	GuestStoreSQLite = "sqlite"
	GuestStoreRedis  = "redis"
)

type Config struct {
	App        AppConfig
	Upstream   UpstreamConfig
	GuestStore GuestStoreConfig
	Redis      RedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Upstream.validate(); err != nil {
		return nil, err
	}
	if err := cfg.GuestStore.validate(); err != nil {
		return nil, err
	}
	if cfg.GuestStore.Driver == GuestStoreRedis && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("redis guest store requires MOSAIK_REDIS_URL or MOSAIK_REDIS_ADDR")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env       string `envconfig:"MOSAIK_APP_ENV" default:"dev"`
	Port      string `envconfig:"MOSAIK_APP_PORT" default:"8090"`
	LogLevel  string `envconfig:"MOSAIK_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"MOSAIK_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// UpstreamConfig points the gateway at the clothing-store REST backend.
type UpstreamConfig struct {
	BaseURL string        `envconfig:"MOSAIK_UPSTREAM_BASE_URL" default:"http://localhost:8080/api"`
	Timeout time.Duration `envconfig:"MOSAIK_UPSTREAM_TIMEOUT" default:"10s"`
}

func (u UpstreamConfig) validate() error {
	parsed, err := url.Parse(u.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing upstream base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("upstream base url must be http(s), got %q", u.BaseURL)
	}
	if u.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	return nil
}

// GuestStoreConfig selects the durable backing for unauthenticated carts.
type GuestStoreConfig struct {
	Driver     string `envconfig:"MOSAIK_GUEST_STORE_DRIVER" default:"sqlite"`
	SQLitePath string `envconfig:"MOSAIK_GUEST_STORE_SQLITE_PATH" default:"mosaik-storefront.db"`
	StorageKey string `envconfig:"MOSAIK_GUEST_STORE_KEY" default:"mosaik_guest_cart"`
}

func (g GuestStoreConfig) validate() error {
	switch g.Driver {
	case GuestStoreSQLite, GuestStoreRedis:
	default:
		return fmt.Errorf("unknown guest store driver %q", g.Driver)
	}
	if g.StorageKey == "" {
		return fmt.Errorf("guest store storage key is required")
	}
	if g.Driver == GuestStoreSQLite && g.SQLitePath == "" {
		return fmt.Errorf("sqlite guest store requires a path")
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"MOSAIK_REDIS_URL"`
	Address      string        `envconfig:"MOSAIK_REDIS_ADDR"`
	Password     string        `envconfig:"MOSAIK_REDIS_PASSWORD"`
	DB           int           `envconfig:"MOSAIK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MOSAIK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MOSAIK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MOSAIK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MOSAIK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MOSAIK_REDIS_WRITE_TIMEOUT" default:"5s"`
}
