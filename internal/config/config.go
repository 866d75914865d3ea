package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	HTTPPort       string   `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string   `env:"DATABASE_URL,required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	SessionSecret     string        `env:"SESSION_SECRET,required"`
	SessionMaxAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"sid"`

	EncryptionKey         string `env:"ENCRYPTION_KEY,required"`
	EncryptionIV          string `env:"ENCRYPTION_IV"`
	EncryptionLegacyWrite bool   `env:"ENCRYPTION_LEGACY_WRITE" envDefault:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"auth-vault"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	OTPRateLimit       int           `env:"OTP_RATE_LIMIT" envDefault:"5"`
	OTPRateWindow      time.Duration `env:"OTP_RATE_WINDOW" envDefault:"10m"`
	OTPJanitorInterval time.Duration `env:"OTP_JANITOR_INTERVAL" envDefault:"5m"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa formatos que env no puede expresar con tags.
func (c *Config) Validate() error {
	if key, err := hex.DecodeString(strings.TrimSpace(c.EncryptionKey)); err != nil || len(key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters")
	}
	if c.EncryptionIV != "" {
		if iv, err := hex.DecodeString(strings.TrimSpace(c.EncryptionIV)); err != nil || len(iv) != 16 {
			return fmt.Errorf("ENCRYPTION_IV must be 32 hex characters")
		}
	}
	if c.EncryptionLegacyWrite && c.EncryptionIV == "" {
		return fmt.Errorf("ENCRYPTION_LEGACY_WRITE requires ENCRYPTION_IV")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	return nil
}

// IsProduction indica si el servicio corre en producción.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}
