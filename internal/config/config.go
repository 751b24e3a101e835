// Package config loads the runtime settings of the coffee shop server.
// Values come from the process environment, optionally seeded from a .env file,
// and fall back to development defaults.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime settings for the server.
// The defaults are meant for local development; JWTSecretKey in particular must be
// overridden in production.
type Config struct {
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	ServerRunAddress string        `envconfig:"SERVER_RUN_ADDRESS" default:"0.0.0.0:8080"`
	DatabaseURI      string        `envconfig:"DATABASE_URI" default:"host=db user=postgres password=password dbname=coffee_shop sslmode=disable"`
	JWTSecretKey     string        `envconfig:"JWT_SECRET_KEY" default:"your-secret-key"`
	TokenTTL         time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	LockTimeout      time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"`
	AllowedOrigins   []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Bootstrap admin, created at startup when AdminPassword is set.
	AdminUsername string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@coffee.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

// LoadConfig reads envFile into the environment if it exists and then builds a Config
// from the environment. Variables already set in the environment win over the file.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecretKey == "" {
		return nil, errors.New("config: JWT_SECRET_KEY must not be empty")
	}
	if cfg.TokenTTL < 0 {
		return nil, errors.New("config: TOKEN_TTL must not be negative")
	}

	return cfg, nil
}
