package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. It is built once at startup
// and passed to component constructors; business logic never reads ambient
// environment state.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Escrow   EscrowConfig   `mapstructure:"escrow"`
	Provider ProviderConfig `mapstructure:"provider"`
	Cron     CronConfig     `mapstructure:"cron"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// EscrowConfig holds the money rules of the escrow core.
type EscrowConfig struct {
	FeePercent        float64       `mapstructure:"fee_percent"`         // platform fee percentage
	FeeMinimum        int64         `mapstructure:"fee_minimum"`         // floor, in minor units
	MinOrderAmount    int64         `mapstructure:"min_order_amount"`    // smallest accepted gross, minor units
	AmountTolerance   int64         `mapstructure:"amount_tolerance"`    // manual-path claimed-vs-expected slack
	AutoReleaseWindow time.Duration `mapstructure:"auto_release_window"` // locked -> auto-release deadline
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`      // in-process sweeper cadence
}

// ProviderConfig holds outbound mobile-money provider settings.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	ShortCode      string        `mapstructure:"short_code"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"` // token fetch only; never payments
}

type CronConfig struct {
	Secret string `mapstructure:"secret"` // shared secret guarding the scheduled trigger
}

type AdminConfig struct {
	FraudAlertUser string `mapstructure:"fraud_alert_user"` // operator UUID receiving fraud alerts
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PAYLOOM.
// Nested keys use underscore: PAYLOOM_DATABASE_HOST, PAYLOOM_ESCROW_FEE_PERCENT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payloom")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "payloom")
	v.SetDefault("escrow.fee_percent", 5.0)
	v.SetDefault("escrow.fee_minimum", 50)
	v.SetDefault("escrow.min_order_amount", 100)
	v.SetDefault("escrow.amount_tolerance", 1)
	v.SetDefault("escrow.auto_release_window", "168h")
	v.SetDefault("escrow.sweep_interval", "1h")
	v.SetDefault("provider.base_url", "https://sandbox.safaricom.co.ke")
	v.SetDefault("provider.consumer_key", "")
	v.SetDefault("provider.consumer_secret", "")
	v.SetDefault("provider.short_code", "")
	v.SetDefault("provider.timeout", "90s")
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("cron.secret", "")
	v.SetDefault("admin.fraud_alert_user", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PAYLOOM_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PAYLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Escrow.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects fee configurations that could produce a fee exceeding the
// gross amount. This is a startup error, never handled per-call.
func (e EscrowConfig) Validate() error {
	if e.FeePercent <= 0 || e.FeePercent > 100 {
		return fmt.Errorf("escrow.fee_percent must be in (0, 100], got %v", e.FeePercent)
	}
	if e.FeeMinimum < 0 {
		return fmt.Errorf("escrow.fee_minimum must not be negative, got %d", e.FeeMinimum)
	}
	if e.MinOrderAmount <= 0 {
		return fmt.Errorf("escrow.min_order_amount must be positive, got %d", e.MinOrderAmount)
	}
	if e.FeeMinimum >= e.MinOrderAmount {
		return fmt.Errorf("escrow.fee_minimum (%d) must be below escrow.min_order_amount (%d): the fee may never exceed the gross amount",
			e.FeeMinimum, e.MinOrderAmount)
	}
	if e.AutoReleaseWindow <= 0 {
		return fmt.Errorf("escrow.auto_release_window must be positive, got %v", e.AutoReleaseWindow)
	}
	if e.AmountTolerance < 0 {
		return fmt.Errorf("escrow.amount_tolerance must not be negative, got %d", e.AmountTolerance)
	}
	return nil
}
