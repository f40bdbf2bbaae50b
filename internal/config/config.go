package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NewRelic     NewRelicConfig
	Log          LogConfig
	Auth         AuthConfig
	Gateway      GatewayConfig
	Payments     PaymentsConfig
	Notification NotificationConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Store selects the ledger backend: "postgres" or "memory".
	Store string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Path  string
	Debug bool
}

// AuthConfig holds the JWT settings used to derive caller identity.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// GatewayConfig holds the payment gateway connection settings.
type GatewayConfig struct {
	BaseURL     string
	SecretKey   string
	Timeout     time.Duration
	CallbackURL string
	ReturnURL   string
}

// PaymentsConfig holds payment policy settings.
type PaymentsConfig struct {
	DefaultCurrency     string
	SupportedCurrencies []string
	InitializeLockTTL   time.Duration
}

// NotificationConfig holds dispatcher and SMTP settings.
type NotificationConfig struct {
	Queue        string // "redis" or "memory"
	Workers      int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
	Sink         string // "smtp" or "log"
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
}

// Load loads configuration from an optional config file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			Store:        v.GetString("LEDGER_STORE"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		Log: LogConfig{
			Path:  v.GetString("LOG_PATH"),
			Debug: v.GetBool("DEBUG"),
		},
		Auth: AuthConfig{
			JWTSecret:   v.GetString("JWT_SECRET"),
			TokenExpiry: v.GetDuration("JWT_EXPIRY"),
		},
		Gateway: GatewayConfig{
			BaseURL:     v.GetString("CHAPA_API_URL"),
			SecretKey:   v.GetString("CHAPA_SECRET_KEY"),
			Timeout:     v.GetDuration("GATEWAY_TIMEOUT"),
			CallbackURL: v.GetString("GATEWAY_CALLBACK_URL"),
			ReturnURL:   v.GetString("GATEWAY_RETURN_URL"),
		},
		Payments: PaymentsConfig{
			DefaultCurrency:     strings.ToUpper(v.GetString("PAYMENT_DEFAULT_CURRENCY")),
			SupportedCurrencies: upperAll(v.GetStringSlice("PAYMENT_CURRENCIES")),
			InitializeLockTTL:   v.GetDuration("PAYMENT_INIT_LOCK_TTL"),
		},
		Notification: NotificationConfig{
			Queue:        v.GetString("NOTIFY_QUEUE"),
			Workers:      v.GetInt("NOTIFY_WORKERS"),
			MaxAttempts:  v.GetInt("NOTIFY_MAX_ATTEMPTS"),
			BaseBackoff:  v.GetDuration("NOTIFY_BASE_BACKOFF"),
			MaxBackoff:   v.GetDuration("NOTIFY_MAX_BACKOFF"),
			PollInterval: v.GetDuration("NOTIFY_POLL_INTERVAL"),
			Sink:         v.GetString("NOTIFY_SINK"),
			SMTPHost:     v.GetString("EMAIL_HOST"),
			SMTPPort:     v.GetInt("EMAIL_PORT"),
			SMTPUser:     v.GetString("EMAIL_USER"),
			SMTPPassword: v.GetString("EMAIL_PASSWORD"),
			From:         v.GetString("DEFAULT_FROM_EMAIL"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("LEDGER_STORE", "postgres")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "travel")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NEW_RELIC_APP_NAME", "travel-booking")
	v.SetDefault("NEW_RELIC_ENABLED", false)

	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("DEBUG", false)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_EXPIRY", 24*time.Hour)

	v.SetDefault("CHAPA_API_URL", "https://api.chapa.co")
	v.SetDefault("GATEWAY_TIMEOUT", 10*time.Second)

	v.SetDefault("PAYMENT_DEFAULT_CURRENCY", "KES")
	v.SetDefault("PAYMENT_CURRENCIES", []string{"KES", "ETB", "USD"})
	v.SetDefault("PAYMENT_INIT_LOCK_TTL", 30*time.Second)

	v.SetDefault("NOTIFY_QUEUE", "redis")
	v.SetDefault("NOTIFY_WORKERS", 4)
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFY_BASE_BACKOFF", 2*time.Second)
	v.SetDefault("NOTIFY_MAX_BACKOFF", 5*time.Minute)
	v.SetDefault("NOTIFY_POLL_INTERVAL", time.Second)
	v.SetDefault("NOTIFY_SINK", "smtp")
	v.SetDefault("EMAIL_HOST", "mailpit")
	v.SetDefault("EMAIL_PORT", 1025)
	v.SetDefault("DEFAULT_FROM_EMAIL", "bookings@travel.local")
}

// upperAll normalizes a currency list; env values arrive as "KES,ETB".
func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
