package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the typed view of the settings main needs. Secrets used deep in
// the services (jwt.*, argon2.*) stay in viper and are read where used.
type Config struct {
	Env            string
	Port           string
	AllowedOrigins []string
	Portal         PortalConfig
	RabbitMQ       RabbitMQConfig
	Reconciliation ReconciliationConfig
}

type PortalConfig struct {
	DefaultBalance   decimal.Decimal
	LoginMaxAttempts int
	LoginLockout     time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type ReconciliationConfig struct {
	Schedule string
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

var envBindings = map[string]string{
	"app.env":                   "APP_ENV",
	"server.port":               "PORT",
	"server.allowed_origins":    "CORS_ALLOWED_ORIGINS",
	"database.host":             "DATABASE_HOST",
	"database.port":             "DATABASE_PORT",
	"database.user":             "DATABASE_USER",
	"database.password":         "DATABASE_PASSWORD",
	"database.name":             "DATABASE_NAME",
	"database.ssl_mode":         "DATABASE_SSL_MODE",
	"redis.host":                "REDIS_HOST",
	"redis.port":                "REDIS_PORT",
	"redis.password":            "REDIS_PASSWORD",
	"redis.db":                  "REDIS_DB",
	"jwt.secret_key":            "JWT_SECRET_KEY",
	"jwt.expiry_hours":          "JWT_EXPIRY_HOURS",
	"argon2.time":               "ARGON2_TIME",
	"argon2.memory":             "ARGON2_MEMORY",
	"argon2.threads":            "ARGON2_THREADS",
	"argon2.key_length":         "ARGON2_KEY_LENGTH",
	"argon2.salt_length":        "ARGON2_SALT_LENGTH",
	"portal.default_balance":    "PORTAL_DEFAULT_BALANCE",
	"portal.login_max_attempts": "PORTAL_LOGIN_MAX_ATTEMPTS",
	"portal.login_lockout":      "PORTAL_LOGIN_LOCKOUT",
	"rabbitmq.url":              "RABBITMQ_URL",
	"rabbitmq.exchange":         "RABBITMQ_EXCHANGE",
	"reconciliation.schedule":   "RECONCILIATION_SCHEDULE",
}

func setDefaults() {
	viper.SetDefault("app.env", "production")
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("server.allowed_origins", "http://localhost:3000")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("portal.default_balance", "0")
	viper.SetDefault("portal.login_max_attempts", 5)
	viper.SetDefault("portal.login_lockout", 15*time.Minute)
	viper.SetDefault("rabbitmq.exchange", "portal.payments")
	viper.SetDefault("reconciliation.schedule", "@every 1h")
}

// Load reads envFile (when present) and the environment into viper and
// returns the typed configuration. Environment variables win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		viper.SetConfigFile(envFile)
		viper.SetConfigType("env")
	}
	viper.AutomaticEnv()

	setDefaults()

	// a missing .env is fine, the environment alone may carry everything
	fileLoaded := envFile != "" && viper.ReadInConfig() == nil

	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
		// .env entries land under their lower-cased variable name
		if fileKey := strings.ToLower(env); fileLoaded && viper.InConfig(fileKey) {
			viper.SetDefault(key, viper.Get(fileKey))
		}
	}

	if viper.GetString("jwt.secret_key") == "" {
		return nil, errors.New("JWT_SECRET_KEY is required")
	}

	defaultBalance, err := decimal.NewFromString(viper.GetString("portal.default_balance"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORTAL_DEFAULT_BALANCE: %w", err)
	}
	if defaultBalance.IsNegative() {
		return nil, errors.New("PORTAL_DEFAULT_BALANCE must not be negative")
	}

	return &Config{
		Env:            viper.GetString("app.env"),
		Port:           viper.GetString("server.port"),
		AllowedOrigins: splitList(viper.GetString("server.allowed_origins")),
		Portal: PortalConfig{
			DefaultBalance:   defaultBalance,
			LoginMaxAttempts: viper.GetInt("portal.login_max_attempts"),
			LoginLockout:     viper.GetDuration("portal.login_lockout"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("rabbitmq.url"),
			Exchange: viper.GetString("rabbitmq.exchange"),
		},
		Reconciliation: ReconciliationConfig{
			Schedule: schedule(viper.GetString("reconciliation.schedule")),
		},
	}, nil
}

// schedule maps "off" to an empty (disabled) schedule.
func schedule(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "off") {
		return ""
	}
	return raw
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
