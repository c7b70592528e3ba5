package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   string
	BcryptCost string
}

type CORSConfig struct {
	Origins []string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port: getenv("PORT", "8080"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenTTL:   getenv("TOKEN_TTL", "1h"),
			BcryptCost: getenv("BCRYPT_COST", "10"),
		},
		CORS: CORSConfig{
			Origins: splitOrigins(getenv("CORS_ORIGIN", "http://localhost:3000")),
		},
	}
}

// Validate checks the startup-fatal settings. The process must refuse to
// start with an empty signing secret rather than issue unverifiable tokens.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if _, err := c.Auth.ParseTokenTTL(); err != nil {
		return fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	if _, err := c.Auth.ParseBcryptCost(); err != nil {
		return fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	return nil
}

func (a AuthConfig) ParseTokenTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(a.TokenTTL)
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, errors.New("must be positive")
	}
	return ttl, nil
}

func (a AuthConfig) ParseBcryptCost() (int, error) {
	cost, err := strconv.Atoi(a.BcryptCost)
	if err != nil {
		return 0, err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return 0, fmt.Errorf("must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return cost, nil
}

func splitOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
