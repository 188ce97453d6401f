package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/pkg/messaging/redis"
	"github.com/jwalitptl/practice-api/pkg/worker"
)

// EnvPrefix prefixes every environment override, e.g. PRACTICE_SERVER_PORT.
const EnvPrefix = "practice"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	Practice  PracticeConfig  `mapstructure:"practice"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// Debug exposes internal error messages in responses.
	Debug           bool          `mapstructure:"debug"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
	// URL, when set, is used as the DSN as is.
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours" split_words:"true"`
}

type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	MaxRetries    int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize      int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" split_words:"true"`
	ChannelPrefix string        `mapstructure:"channel_prefix" split_words:"true"`
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl" split_words:"true"`
}

// PracticeConfig holds the named defaults of the scheduling core.
type PracticeConfig struct {
	DefaultSessionPrice    float64 `mapstructure:"default_session_price" split_words:"true"`
	DefaultSessionDuration int     `mapstructure:"default_session_duration" split_words:"true"`
	// Timezone decides what "today" means for upcoming appointments and stats.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (c PracticeConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type OutboxConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	BatchSize       int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval    time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts   int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" split_words:"true"`
	MaxDeliveries   int           `mapstructure:"max_deliveries" split_words:"true"`
	ClaimTimeout    time.Duration `mapstructure:"claim_timeout" split_words:"true"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "35s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "practice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("jwt.issuer", "practice-api")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel_prefix", "practice")

	v.SetDefault("smtp.port", 587)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.idle_ttl", "10m")

	v.SetDefault("practice.default_session_price", model.DefaultSessionPrice)
	v.SetDefault("practice.default_session_duration", model.DefaultSessionDuration)
	v.SetDefault("practice.timezone", "UTC")

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "200ms")
	v.SetDefault("outbox.max_deliveries", 10)
	v.SetDefault("outbox.claim_timeout", "5m")
	v.SetDefault("outbox.retention", "168h")
	v.SetDefault("outbox.cleanup_interval", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

// Load reads the YAML file at path, or config.yml from the usual locations
// when path is empty, then applies PRACTICE_* environment overrides. A
// missing config.yml is not an error when no explicit path was given.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		problems = append(problems, `database.driver must be "postgres" or "memory"`)
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Practice.DefaultSessionPrice < 0 {
		problems = append(problems, "practice.default_session_price must not be negative")
	}
	if c.Practice.DefaultSessionDuration <= 0 {
		problems = append(problems, "practice.default_session_duration must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate_limit.requests_per_second and rate_limit.burst must be positive")
	}
	if _, err := time.LoadLocation(c.Practice.Timezone); err != nil {
		problems = append(problems, "practice.timezone is not a known time zone")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *OutboxConfig) ToWorkerConfig(channelPrefix string) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxDeliveries: c.MaxDeliveries,
		ClaimTimeout:  c.ClaimTimeout,
		ChannelPrefix: channelPrefix,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
