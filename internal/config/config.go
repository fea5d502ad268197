// Package config loads runtime configuration from environment variables.
// Required values have no embedded fallbacks: a missing secret aborts
// startup with an error naming every absent key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults for optional settings.
const (
	DefaultAxiomURL       = "https://api.axiom.co"
	DefaultMaxResultBytes = 100 * 1024
	DefaultErrorPatterns  = "error,panic,fatal,exception"
	DefaultTransport      = "stdio"
	DefaultPort           = "8080"
	DefaultBaseURL        = "http://localhost:8080"
	DefaultDBMaxConns     = 10
)

// Config holds everything the server needs to start.
type Config struct {
	AxiomURL     string
	AxiomToken   string
	AxiomDataset string

	DatabaseURL string

	// Prod environment targets. Both must be set for the prod
	// environment to be registered; neither alone is enough.
	ProdAxiomDataset string
	ProdDatabaseURL  string

	ClickHouseDSN string

	MaxResultBytes int
	ErrorPatterns  []string
	DBMaxConns     int

	Transport string // "stdio" or "sse"
	Port      string
	BaseURL   string
	LogLevel  string
}

// Load reads configuration from the environment. It returns an error
// listing all missing required variables rather than failing on the first.
func Load() (*Config, error) {
	cfg := &Config{
		AxiomURL:         envOrDefault("AXIOM_URL", DefaultAxiomURL),
		AxiomToken:       os.Getenv("AXIOM_TOKEN"),
		AxiomDataset:     os.Getenv("AXIOM_DATASET"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ProdAxiomDataset: os.Getenv("PROD_AXIOM_DATASET"),
		ProdDatabaseURL:  os.Getenv("PROD_DATABASE_URL"),
		ClickHouseDSN:    os.Getenv("CLICKHOUSE_DSN"),
		MaxResultBytes:   envOrDefaultInt("MAX_RESULT_BYTES", DefaultMaxResultBytes),
		ErrorPatterns:    splitPatterns(envOrDefault("ERROR_PATTERNS", DefaultErrorPatterns)),
		DBMaxConns:       envOrDefaultInt("DB_MAX_CONNS", DefaultDBMaxConns),
		Transport:        envOrDefault("TRANSPORT", DefaultTransport),
		Port:             envOrDefault("PORT", DefaultPort),
		BaseURL:          envOrDefault("BASE_URL", DefaultBaseURL),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}

	var missing []string
	if cfg.AxiomToken == "" {
		missing = append(missing, "AXIOM_TOKEN")
	}
	if cfg.AxiomDataset == "" {
		missing = append(missing, "AXIOM_DATASET")
	}
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if cfg.Transport != "stdio" && cfg.Transport != "sse" {
		return nil, fmt.Errorf("config: TRANSPORT must be \"stdio\" or \"sse\", got %q", cfg.Transport)
	}
	if cfg.MaxResultBytes <= 0 {
		return nil, fmt.Errorf("config: MAX_RESULT_BYTES must be positive, got %d", cfg.MaxResultBytes)
	}

	// A half-configured prod environment is a misconfiguration, not a
	// silently disabled one.
	if (cfg.ProdAxiomDataset == "") != (cfg.ProdDatabaseURL == "") {
		return nil, fmt.Errorf("config: PROD_AXIOM_DATASET and PROD_DATABASE_URL must be set together")
	}

	return cfg, nil
}

// ProdEnabled reports whether the prod environment targets are configured.
func (c *Config) ProdEnabled() bool {
	return c.ProdAxiomDataset != "" && c.ProdDatabaseURL != ""
}

func splitPatterns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
