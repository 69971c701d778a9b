package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sifan077/LinkPulse/internal/app/shortcode"
	"github.com/spf13/viper"
)

type Config struct {
	// Application
	App AppConfig `mapstructure:"app"`

	// Record store selection
	Store StoreConfig `mapstructure:"store"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Short code engine
	Shortener ShortenerConfig `mapstructure:"shortener"`

	// Rate limiting on the write API
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Env        string `mapstructure:"env"`
	ListenAddr string `mapstructure:"listen_addr"`
	BaseURL    string `mapstructure:"base_url"`
	Secret     string `mapstructure:"secret"`
	Timezone   string `mapstructure:"timezone"`
	LogLevel   string `mapstructure:"log_level"`
	// CORSOrigins lists browser origins allowed to call the API; empty allows any.
	CORSOrigins []string `mapstructure:"cors_origins"`
	// TokenTTL is the lifetime of owner tokens minted by cmd/tokengen.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// CodeFilterRefresh is how often the code filter reloads stored codes; 0 disables it.
	CodeFilterRefresh time.Duration `mapstructure:"code_filter_refresh"`
}

// IsDevelopment reports whether the app runs outside production.
func (c AppConfig) IsDevelopment() bool {
	return c.Env != "production"
}

// Location resolves the timezone used for calendar-day stats buckets.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
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
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type ShortenerConfig struct {
	CodeLength    int           `mapstructure:"code_length"`
	MaxCodeLength int           `mapstructure:"max_code_length"`
	MaxRetries    int           `mapstructure:"max_retries"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	BloomCapacity uint          `mapstructure:"bloom_capacity"`
	BloomFPRate   float64       `mapstructure:"bloom_fp_rate"`
	TopN          int           `mapstructure:"top_n"`
	MaxURLLength  int           `mapstructure:"max_url_length"`
}

// GeneratorConfig converts the shortener section into the code generator's settings.
func (c ShortenerConfig) GeneratorConfig() shortcode.Config {
	return shortcode.Config{
		Length:      c.CodeLength,
		MaxLength:   c.MaxCodeLength,
		MaxRetries:  c.MaxRetries,
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
	}
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

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Shortener.CodeLength > c.Shortener.MaxCodeLength {
		return fmt.Errorf("config: code_length %d exceeds max_code_length %d", c.Shortener.CodeLength, c.Shortener.MaxCodeLength)
	}
	if c.Shortener.MaxCodeLength > shortcode.MaxLength {
		return fmt.Errorf("config: max_code_length must not exceed %d, got %d", shortcode.MaxLength, c.Shortener.MaxCodeLength)
	}
	if c.Shortener.CodeLength < shortcode.MinLength {
		return fmt.Errorf("config: code_length must be at least %d, got %d", shortcode.MinLength, c.Shortener.CodeLength)
	}
	if !c.App.IsDevelopment() && c.App.Secret == "" {
		return fmt.Errorf("config: app.secret is required outside development")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.App.Timezone, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.listen_addr", ":8080")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.token_ttl", 30*24*time.Hour)
	v.SetDefault("app.code_filter_refresh", 5*time.Minute)

	v.SetDefault("store.driver", "postgres")

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("shortener.code_length", 8)
	v.SetDefault("shortener.max_code_length", 12)
	v.SetDefault("shortener.max_retries", 10)
	v.SetDefault("shortener.max_attempts", 64)
	v.SetDefault("shortener.base_delay", 10*time.Millisecond)
	v.SetDefault("shortener.bloom_capacity", 1_000_000)
	v.SetDefault("shortener.bloom_fp_rate", 0.01)
	v.SetDefault("shortener.top_n", 5)
	v.SetDefault("shortener.max_url_length", 2048)

	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	// Application
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.listen_addr", "LISTEN_ADDR")
	v.BindEnv("app.base_url", "API_BASE_URL")
	v.BindEnv("app.secret", "APP_SECRET")
	v.BindEnv("app.timezone", "APP_TIMEZONE")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.cors_origins", "CORS_ORIGINS")
	v.BindEnv("store.driver", "STORE_DRIVER")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Shortener
	v.BindEnv("shortener.code_length", "SHORT_CODE_LENGTH")
	v.BindEnv("shortener.base_delay", "SHORT_CODE_BASE_DELAY")
}
