package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string

	// OpenRouter
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterReferer string
	OpenRouterTitle   string

	// Engine
	DefaultModel         string
	SummarizationModel   string
	SummarizeThreshold   int
	MaxContextTokens     int
	MaxContextMessages   int
	SummarizationTimeout time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		OpenRouterReferer: getEnv("OPENROUTER_REFERER", "https://github.com/loomlabs/loom"),
		OpenRouterTitle:   getEnv("OPENROUTER_TITLE", "Loom"),

		DefaultModel:         os.Getenv("DEFAULT_MODEL"),
		SummarizationModel:   os.Getenv("SUMMARIZATION_MODEL"),
		SummarizeThreshold:   getEnvInt("SUMMARIZATION_MESSAGE_THRESHOLD", 0),
		MaxContextTokens:     getEnvInt("MAX_CONTEXT_TOKENS", 0),
		MaxContextMessages:   getEnvInt("MAX_CONTEXT_MESSAGES", 0),
		SummarizationTimeout: getEnvDuration("SUMMARIZATION_TIMEOUT", 0),
	}

	// In production, require the essentials
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.OpenRouterAPIKey == "" {
			panic("OPENROUTER_API_KEY is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
