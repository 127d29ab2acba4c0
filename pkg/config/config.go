package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all searchdocs configuration.
type Config struct {
	Listen   string        `yaml:"listen"`
	DBPath   string        `yaml:"db_path"`
	LogLevel string        `yaml:"log_level"`
	Backend  BackendConfig `yaml:"backend"`
	Cache    CacheConfig   `yaml:"cache"`
}

// BackendConfig defines the remote retrieval backend.
type BackendConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	VectorStoreID string `yaml:"vector_store_id"`
	Model         string `yaml:"model"`
	AssistantName string `yaml:"assistant_name"`
}

// CacheConfig controls the in-memory answer cache.
// StoreFailures controls whether fallback and failure answers are cached for
// the full TTL alongside successful ones; the original behavior caches
// everything, so that is the default.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	StoreFailures bool          `yaml:"store_failures"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DBPath:   "searchdocs.db",
		LogLevel: "info",
		Backend: BackendConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			AssistantName: "documentation-search-agent",
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           10 * time.Minute,
			StoreFailures: true,
		},
	}
}

// Load reads a YAML config file, expands environment variables, and applies
// environment overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv maps the process environment onto the config. A missing
// VECTOR_STORE_ID is a normal runtime condition, not a startup failure; the
// orchestrator answers with a configuration notice instead.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}
	if store := os.Getenv("VECTOR_STORE_ID"); store != "" {
		c.Backend.VectorStoreID = store
	}
}
