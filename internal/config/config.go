package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"gocure/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Fit      FitConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings for the optional fit-run
// repository
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// FitConfig holds defaults for the fitting pipeline
type FitConfig struct {
	Workers          int
	DefaultBootstrap int
	DefaultTolerance float64
	MaxIterations    int
}

// Load reads configuration from the environment. A .env file is honored when
// present; the database block is optional and only validated by
// LoadDatabase.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fit, err := loadFitConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load fit configuration")
	}

	return &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Fit:      *fit,
		LogLevel: getEnvOrDefault("LOG_LEVEL", "WARN"),
	}, nil
}

// LoadDatabase reads and validates the database configuration. It fails when
// DATABASE_URL is unset, so callers that never persist fits never pay for it.
func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	return &DatabaseConfig{
		URL:     url,
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}, nil
}

func loadFitConfig() (*FitConfig, error) {
	workers := getEnvIntOrDefault("FIT_WORKERS", runtime.NumCPU())
	if workers < 1 {
		return nil, errors.ConfigInvalid("FIT_WORKERS must be at least 1")
	}
	nboot := getEnvIntOrDefault("FIT_BOOTSTRAP", 100)
	if nboot < 0 {
		return nil, errors.ConfigInvalid("FIT_BOOTSTRAP cannot be negative")
	}
	tol := getEnvFloatOrDefault("FIT_TOLERANCE", 1e-7)
	if tol <= 0 {
		return nil, errors.ConfigInvalid("FIT_TOLERANCE must be positive")
	}
	maxIter := getEnvIntOrDefault("FIT_MAX_ITERATIONS", 200)
	if maxIter < 1 {
		return nil, errors.ConfigInvalid("FIT_MAX_ITERATIONS must be at least 1")
	}

	return &FitConfig{
		Workers:          workers,
		DefaultBootstrap: nboot,
		DefaultTolerance: tol,
		MaxIterations:    maxIter,
	}, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
