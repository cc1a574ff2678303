package config

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	CacheProviderRedis  = "redis"
	CacheProviderMemory = "memory"
)

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	Environment     string `mapstructure:"environment"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled          bool        `mapstructure:"enabled"`
	Provider         string      `mapstructure:"provider"`
	Redis            RedisConfig `mapstructure:"redis"`
	Prefix           string      `mapstructure:"prefix"`
	TTL              string      `mapstructure:"ttl"`
	TimeToIdle       bool        `mapstructure:"time_to_idle"`
	RetryInterval    string      `mapstructure:"retry_interval"`
	OperationTimeout string      `mapstructure:"operation_timeout"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "file:currency-exchange.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.provider", CacheProviderRedis)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.prefix", "my-redis-")
	v.SetDefault("cache.ttl", "60s")
	v.SetDefault("cache.time_to_idle", true)
	v.SetDefault("cache.retry_interval", "5s")
	v.SetDefault("cache.operation_timeout", "500ms")
	v.SetDefault("health_check.interval", "10s")
	v.SetDefault("metrics.buffer_size", 1000)
}

// Load reads config.yaml from ./config or the working directory, applies
// environment overrides (cache.redis.address -> CACHE_REDIS_ADDRESS) and
// validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Logging),
		validation.Field(&c.Database),
		validation.Field(&c.Cache),
		validation.Field(&c.HealthCheck),
		validation.Field(&c.Metrics),
	)
}

func (sc ServerConfig) Validate() error {
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&sc.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
		validation.Field(&sc.ReadTimeout, validation.By(validateDuration)),
		validation.Field(&sc.WriteTimeout, validation.By(validateDuration)),
		validation.Field(&sc.ShutdownTimeout, validation.By(validateDuration)),
	)
}

func (lc LoggingConfig) Validate() error {
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

func (dc DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&dc,
		validation.Field(&dc.Driver,
			validation.Required,
			validation.In(DriverSQLite, DriverPostgres),
		),
		validation.Field(&dc.DSN, validation.Required),
		validation.Field(&dc.MaxOpenConns, validation.Min(0)),
	)
}

func (cc CacheConfig) Validate() error {
	return validation.ValidateStruct(&cc,
		validation.Field(&cc.Provider,
			validation.When(cc.Enabled,
				validation.Required,
				validation.In(CacheProviderRedis, CacheProviderMemory),
			),
		),
		validation.Field(&cc.Redis,
			validation.When(cc.Enabled && cc.Provider == CacheProviderRedis,
				validation.By(func(value interface{}) error {
					rc, ok := value.(RedisConfig)
					if !ok {
						return validation.NewError("validation_invalid_type", "must be a RedisConfig")
					}
					return validation.ValidateStruct(&rc,
						validation.Field(&rc.Address,
							validation.Required,
							validation.By(validateHostPort),
						),
						validation.Field(&rc.DB, validation.Min(0), validation.Max(15)),
					)
				}),
			),
		),
		validation.Field(&cc.TTL, validation.Required, validation.By(validateDuration)),
		validation.Field(&cc.RetryInterval,
			validation.Required,
			validation.By(validateDuration),
			validation.By(validatePositiveDuration),
		),
		validation.Field(&cc.OperationTimeout, validation.By(validateDuration)),
	)
}

func (hc HealthCheckConfig) Validate() error {
	return validation.ValidateStruct(&hc,
		validation.Field(&hc.Interval,
			validation.Required,
			validation.By(validateDuration),
			validation.By(validatePositiveDuration),
		),
	)
}

func (mc MetricsConfig) Validate() error {
	return validation.ValidateStruct(&mc,
		validation.Field(&mc.BufferSize, validation.Required, validation.Min(1)),
	)
}

// Duration parses a validated duration field. Empty means zero.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if durationStr == "" {
		return nil
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	durationStr, _ := value.(string)
	if d, err := time.ParseDuration(durationStr); err == nil && d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}
	return nil
}
