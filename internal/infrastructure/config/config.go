package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	BrokerDriverKafka     = "kafka"
	BrokerDriverRedis     = "redis"
	BrokerDriverSimulated = "simulated"
)

type Config struct {
	Ops           OpsConfig           `mapstructure:"ops"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Broker        BrokerConfig        `mapstructure:"broker"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Dispatch      DispatchConfig      `mapstructure:"dispatch"`
	Janitor       JanitorConfig       `mapstructure:"janitor"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

// OpsConfig is the health/metrics/admin HTTP listener.
type OpsConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	CORS               CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// AuthConfig guards the event API. With an empty secret the API is not mounted.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	MaxConnections    int           `mapstructure:"max_connections"`
	MinConnections    int           `mapstructure:"min_connections"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
	// AutoMigrate applies pending migrations at startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type BrokerConfig struct {
	Driver            string        `mapstructure:"driver"`
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	StreamMaxLen      int64         `mapstructure:"stream_max_len"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type SchedulerConfig struct {
	LifecycleInterval time.Duration `mapstructure:"lifecycle_interval"`
}

type DispatchConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	LeaseDuration  time.Duration `mapstructure:"lease_duration"`
	Workers        int           `mapstructure:"workers"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	// MaxAttempts of 0 retries forever.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// BatchWindow is the longest a claimed batch can take: one publish timeout per
// round of workers.
func (d DispatchConfig) BatchWindow() time.Duration {
	if d.Workers <= 0 {
		return 0
	}
	rounds := (d.BatchSize + d.Workers - 1) / d.Workers
	return time.Duration(rounds) * d.PublishTimeout
}

type JanitorConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// EVENTMANAGER_DISPATCH_BATCH_SIZE -> dispatch.batch_size
	v.SetEnvPrefix("EVENTMANAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/event-manager")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
		errs = append(errs, fmt.Errorf("ops.port must be between 1 and 65535, got %d", c.Ops.Port))
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive"))
		}
	case StorageDriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StorageDriverPostgres, StorageDriverSQLite, c.Storage.Driver))
	}

	if c.Redis.Enabled && c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}

	switch c.Broker.Driver {
	case BrokerDriverKafka:
		if len(c.Broker.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("broker.brokers is required for the kafka driver"))
		}
	case BrokerDriverRedis:
		if !c.Redis.Enabled {
			errs = append(errs, fmt.Errorf("broker.driver redis requires redis.enabled"))
		}
	case BrokerDriverSimulated:
	default:
		errs = append(errs, fmt.Errorf("broker.driver must be %q, %q or %q, got %q", BrokerDriverKafka, BrokerDriverRedis, BrokerDriverSimulated, c.Broker.Driver))
	}
	if c.Broker.Topic == "" {
		errs = append(errs, fmt.Errorf("broker.topic is required"))
	}

	if c.Scheduler.LifecycleInterval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.lifecycle_interval must be positive"))
	}

	if c.Dispatch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.interval must be positive"))
	}
	if c.Dispatch.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.batch_size must be positive"))
	}
	if c.Dispatch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.workers must be positive"))
	}
	if c.Dispatch.PublishTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.publish_timeout must be positive"))
	}
	// Acks are recorded once the whole batch is done, so every claimed task must stay
	// leased for the slowest batch or another instance reclaims and republishes it.
	if c.Dispatch.Workers > 0 && c.Dispatch.LeaseDuration <= c.Dispatch.BatchWindow() {
		errs = append(errs, fmt.Errorf("dispatch.lease_duration %s must exceed the worst-case batch time %s (ceil(batch_size/workers) x publish_timeout)",
			c.Dispatch.LeaseDuration, c.Dispatch.BatchWindow()))
	}
	if c.Dispatch.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_attempts must not be negative"))
	}

	if c.Janitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("janitor.interval must be positive"))
	}
	if c.Janitor.Retention <= 0 {
		errs = append(errs, fmt.Errorf("janitor.retention must be positive"))
	}
	if c.Janitor.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("janitor.lock_ttl must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Storage.Driver == StorageDriverPostgres && c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}
	if c.Ops.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ops.rate_limit_per_minute must not be negative"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Ops server defaults
	v.SetDefault("ops.port", 8081)
	v.SetDefault("ops.read_timeout", "5s")
	v.SetDefault("ops.write_timeout", "10s")
	v.SetDefault("ops.idle_timeout", "60s")
	v.SetDefault("ops.shutdown_timeout", "15s")
	v.SetDefault("ops.rate_limit_per_minute", 60)
	v.SetDefault("ops.cors.allowed_origins", []string{"*"})
	v.SetDefault("ops.cors.allow_credentials", false)

	// Storage defaults
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("storage.sqlite_path", "event-manager.db")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "events")
	v.SetDefault("database.database", "events")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_retry_delay", "1s")
	v.SetDefault("database.auto_migrate", false)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Broker defaults
	v.SetDefault("broker.driver", BrokerDriverKafka)
	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.topic", "events-notifications")
	v.SetDefault("broker.stream_max_len", 100000)
	v.SetDefault("broker.breaker_failures", 5)
	v.SetDefault("broker.breaker_timeout", "30s")
	v.SetDefault("broker.connect_retries", 5)
	v.SetDefault("broker.connect_retry_delay", "1s")

	// Scheduler defaults
	v.SetDefault("scheduler.lifecycle_interval", "60s")

	// Dispatch defaults
	v.SetDefault("dispatch.interval", "5s")
	v.SetDefault("dispatch.batch_size", 100)
	v.SetDefault("dispatch.lease_duration", "120s")
	v.SetDefault("dispatch.workers", 10)
	v.SetDefault("dispatch.publish_timeout", "10s")
	v.SetDefault("dispatch.max_attempts", 0)

	// Janitor defaults
	v.SetDefault("janitor.interval", "24h")
	v.SetDefault("janitor.retention", "168h")
	v.SetDefault("janitor.lock_ttl", "5m")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.service_name", "event-manager")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", false)

	// Instance ID
	v.SetDefault("instance_id", "event-manager-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL is the form golang-migrate expects.
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
