package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/errs"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Verification VerificationConfig `mapstructure:"verification"`
	Media        MediaConfig        `mapstructure:"media"`
	Distribution DistributionConfig `mapstructure:"distribution"`
	Lifecycle    LifecycleConfig    `mapstructure:"lifecycle"`
	Server       ServerConfig       `mapstructure:"server"`
	Bootstrap    BootstrapConfig    `mapstructure:"bootstrap"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig selects the status projection cache backend: "db", "redis" or "none".
type CacheConfig struct {
	Driver   string        `mapstructure:"driver"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type VerificationConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	StatusTimeout     time.Duration `mapstructure:"status_timeout"`
	HealthTimeout     time.Duration `mapstructure:"health_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryInitial      time.Duration `mapstructure:"retry_initial"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// MediaConfig resolves stored media keys into fetchable URLs.
type MediaConfig struct {
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type DistributionConfig struct {
	QueueSize           int    `mapstructure:"queue_size"`
	SubscriberQueueSize int    `mapstructure:"subscriber_queue_size"`
	Shards              int    `mapstructure:"shards"`
	NATSURL             string `mapstructure:"nats_url"`
	NATSSubjectPrefix   string `mapstructure:"nats_subject_prefix"`
}

type LifecycleConfig struct {
	AutoVerify              bool          `mapstructure:"auto_verify"`
	AutoCrossCheck          bool          `mapstructure:"auto_cross_check"`
	Async                   bool          `mapstructure:"async"`
	MaxInFlight             int64         `mapstructure:"max_in_flight"`
	ResolutionDeadline      time.Duration `mapstructure:"resolution_deadline"`
	EscalationSweepInterval time.Duration `mapstructure:"escalation_sweep_interval"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type BootstrapConfig struct {
	DatabaseProbeTimeout     time.Duration `mapstructure:"database_probe_timeout"`
	VerificationProbeTimeout time.Duration `mapstructure:"verification_probe_timeout"`
	BrokerProbeTimeout       time.Duration `mapstructure:"broker_probe_timeout"`
	CacheProbeTimeout        time.Duration `mapstructure:"cache_probe_timeout"`
	HealthInterval           time.Duration `mapstructure:"health_interval"`
	StartTimeout             time.Duration `mapstructure:"start_timeout"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("CF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || isMissingFile(err) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env", slog.String("path", configFile))
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.Bool("verification_enabled", cfg.Verification.Enabled),
	)

	return cfg, nil
}

// Validate checks the fields the process cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Verification.Enabled && strings.TrimSpace(c.Verification.BaseURL) == "" {
		return errors.New("verification.base_url is required when verification is enabled")
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "", "none", "db":
	case "redis":
		if strings.TrimSpace(c.Cache.RedisURL) == "" {
			return errors.New("cache.redis_url is required when cache.driver=redis")
		}
	default:
		return fmt.Errorf("unsupported cache driver %q", c.Cache.Driver)
	}
	if c.Distribution.QueueSize <= 0 {
		return errors.New("distribution.queue_size must be positive")
	}
	return nil
}

// isMissingFile covers an explicit --config path that does not exist;
// viper reports it as an fs error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "civicfix")
	v.SetDefault("app.env", "local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".civicfix/state/civicfix.sqlite")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("cache.driver", "db")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("verification.enabled", true)
	v.SetDefault("verification.base_url", "http://localhost:8001")
	v.SetDefault("verification.api_key", "")
	v.SetDefault("verification.timeout", 30*time.Second)
	v.SetDefault("verification.status_timeout", 10*time.Second)
	v.SetDefault("verification.health_timeout", 5*time.Second)
	v.SetDefault("verification.max_attempts", 3)
	v.SetDefault("verification.retry_initial", 500*time.Millisecond)
	v.SetDefault("verification.requests_per_second", 0)
	v.SetDefault("verification.burst", 1)

	v.SetDefault("media.public_base_url", "")

	v.SetDefault("distribution.queue_size", 1024)
	v.SetDefault("distribution.subscriber_queue_size", 64)
	v.SetDefault("distribution.shards", 16)
	v.SetDefault("distribution.nats_url", "")
	v.SetDefault("distribution.nats_subject_prefix", "civicfix")

	v.SetDefault("lifecycle.auto_verify", true)
	v.SetDefault("lifecycle.auto_cross_check", true)
	v.SetDefault("lifecycle.async", false)
	v.SetDefault("lifecycle.max_in_flight", 8)
	v.SetDefault("lifecycle.resolution_deadline", 14*24*time.Hour)
	v.SetDefault("lifecycle.escalation_sweep_interval", 10*time.Minute)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("bootstrap.database_probe_timeout", 10*time.Second)
	v.SetDefault("bootstrap.verification_probe_timeout", 10*time.Second)
	v.SetDefault("bootstrap.broker_probe_timeout", 5*time.Second)
	v.SetDefault("bootstrap.cache_probe_timeout", 5*time.Second)
	v.SetDefault("bootstrap.health_interval", time.Minute)
	v.SetDefault("bootstrap.start_timeout", 90*time.Second)
}
