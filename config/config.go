package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App AppConfig `mapstructure:"app"`

	Log LogConfig `mapstructure:"log"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	Clicks    ClicksConfig    `mapstructure:"clicks"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redirect  RedirectConfig  `mapstructure:"redirect"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type AppConfig struct {
	Env     string `mapstructure:"env"`
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`
}

// Production reports whether the service runs with production defaults.
func (c AppConfig) Production() bool {
	return c.Env == "production"
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

// ClicksConfig controls how redirects are turned into click events.
type ClicksConfig struct {
	// Async routes clicks through NATS JetStream instead of writing them inline.
	Async         bool          `mapstructure:"async"`
	HashSalt      string        `mapstructure:"hash_salt"`
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

type AnalyticsConfig struct {
	TrendDays     int           `mapstructure:"trend_days"`
	TopLimit      int           `mapstructure:"top_limit"`
	ReferrerLimit int           `mapstructure:"referrer_limit"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
}

// AuthConfig describes how caller identities issued by the auth provider are verified.
type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	AdminPermission string `mapstructure:"admin_permission"`
}

type RedirectConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

// LoadFile reads configuration from an explicit YAML file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Allow environment variables to override YAML entries.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Analytics.TrendDays <= 0 {
		return fmt.Errorf("config: analytics.trend_days must be positive, got %d", c.Analytics.TrendDays)
	}
	if c.App.Production() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required in production")
	}
	if c.App.Production() && c.Redirect.Secret == "" {
		return fmt.Errorf("config: redirect.secret is required in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", 4222)

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("clicks.async", false)
	v.SetDefault("clicks.record_timeout", 3*time.Second)

	v.SetDefault("analytics.trend_days", 7)
	v.SetDefault("analytics.top_limit", 5)
	v.SetDefault("analytics.referrer_limit", 5)
	v.SetDefault("analytics.query_timeout", 5*time.Second)

	v.SetDefault("auth.admin_permission", "admin")

	v.SetDefault("redirect.token_ttl", 60*time.Second)

	v.SetDefault("ratelimit.max_requests", 100)
	v.SetDefault("ratelimit.window", time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.addr", "APP_ADDR")
	v.BindEnv("app.base_url", "BASE_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	v.BindEnv("clicks.async", "CLICKS_ASYNC")
	v.BindEnv("clicks.hash_salt", "CLICK_HASH_SALT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("redirect.secret", "REDIRECT_SECRET")
}
