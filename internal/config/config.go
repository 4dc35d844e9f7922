package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration, populated from the environment.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	Environment    string        `envconfig:"ENVIRONMENT" default:"development"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	JWTSecret      string        `envconfig:"JWT_SECRET" default:"obrolin-dev-secret"`
	AllowOrigins   string        `envconfig:"ALLOW_ORIGINS" default:"http://localhost:3000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`

	// RequireContact restricts chat creation to pairs that are already
	// contacts. Off by default to match the open behavior of the API.
	RequireContact bool `envconfig:"CHAT_REQUIRE_CONTACT" default:"false"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
