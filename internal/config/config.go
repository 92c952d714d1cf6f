package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Events  EventsConfig
	Auth    AuthConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

// ServerConfig is the local UI surface the browser shell talks to.
type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
	CORSOrigins  []string
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type EventsConfig struct {
	RefreshInterval time.Duration
	MinSeverity     string
}

// AuthConfig carries the optional pre-provisioned identity. Empty token means
// guest mode.
type AuthConfig struct {
	Token string
	UID   string
	Admin bool
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8787),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 25),
			CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_URL", "http://localhost:8080/api"),
			Timeout: getEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
		},
		Events: EventsConfig{
			RefreshInterval: getEnvDuration("EVENTS_REFRESH_INTERVAL", 5*time.Minute),
			MinSeverity:     getEnv("EVENTS_MIN_SEVERITY", "low"),
		},
		Auth: AuthConfig{
			Token: getEnv("AUTH_TOKEN", ""),
			UID:   getEnv("AUTH_UID", ""),
			Admin: getEnvBool("AUTH_ADMIN", false),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/crisiswatch.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("invalid rate limit: %d", c.Server.RateLimitRPS)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend URL must be set")
	}
	if c.Backend.Timeout < time.Second {
		return fmt.Errorf("backend timeout must be at least 1 second")
	}

	if c.Events.RefreshInterval < time.Minute {
		return fmt.Errorf("events refresh interval must be at least 1 minute")
	}
	validSeverities := map[string]bool{"critical": true, "high": true, "medium": true, "low": true}
	if !validSeverities[c.Events.MinSeverity] {
		return fmt.Errorf("invalid minimum severity: %s", c.Events.MinSeverity)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Auth.Token != "" && c.Auth.UID == "" {
		return fmt.Errorf("AUTH_UID must be set when AUTH_TOKEN is")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
