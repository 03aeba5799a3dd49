// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	UploadDir   string
	PendingTTL  time.Duration
	GeminiKey   string
	GeminiModel string
	JWTSecret   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	pendingHours := getEnvInt("PENDING_TTL_HOURS", 24)
	if pendingHours <= 0 {
		pendingHours = 24
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/support.db"),
		UploadDir:   getEnv("UPLOAD_DIR", "./data/uploads"),
		PendingTTL:  time.Duration(pendingHours) * time.Hour,
		GeminiKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("PENDING_TTL_HOURS must be > 0")
	}
	return nil
}

// AnalysisEnabled reports whether frame analysis via Gemini is configured.
func (c *Config) AnalysisEnabled() bool {
	return c.GeminiKey != ""
}

// AuthEnabled reports whether the register/login endpoints are configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
