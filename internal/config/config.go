package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration: defaults overridden by
// environment variables, with an optional .env file loaded first.
type Config struct {
	HTTP     *HTTPConfig     `json:"http"`
	Database *DatabaseConfig `json:"database"`
	Auth     *AuthConfig     `json:"auth"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// AuthConfig carries the single shared signing secret. An empty
// secret is not a load error: the server still starts and every
// connection attempt is rejected with a distinguishing close code.
type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: &DatabaseConfig{
			Path: "./data/attendance.db",
		},
		Auth: &AuthConfig{
			JWTSecret: "",
			TokenTTL:  7 * 24 * time.Hour,
		},
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// Load reads configuration with precedence env > .env file > defaults.
// A missing .env file is fine.
func Load() *Config {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv overlays environment variables on the defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("ATTENDANCE_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("ATTENDANCE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if readTimeout := os.Getenv("ATTENDANCE_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("ATTENDANCE_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if dbPath := os.Getenv("ATTENDANCE_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if ttl := os.Getenv("ATTENDANCE_TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Auth.TokenTTL = d
		}
	}

	// JWT_SECRET is accepted unprefixed as well for compatibility
	// with common deployment setups.
	if secret := os.Getenv("ATTENDANCE_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	} else if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	return config
}
