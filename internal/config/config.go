// Package config loads the server configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/feeallocator/internal/calculator"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreXLSX   = "xlsx"
)

// Config represents the application configuration.
type Config struct {
	Port  int
	Store StoreConfig

	// Term is the fee period payments are booked against, e.g. "2026-T3".
	Term         string
	CreditPolicy calculator.CreditPolicy

	Auth  AuthConfig
	MPesa MPesaConfig

	LogLevel  string
	LogFormat string
}

// StoreConfig selects and locates the fee ledger.
type StoreConfig struct {
	Backend      string
	DBPath       string
	WorkbookPath string
}

// AuthConfig configures operator tokens.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// MPesaConfig configures the Daraja C2B integration.
type MPesaConfig struct {
	ConsumerKey       string
	ConsumerSecret    string
	CallbackURL       string
	Shortcode         string
	WebhookSecretHash string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("FEES_PORT", 8080)
	if err != nil {
		return nil, err
	}

	ttl, err := parseDurationEnv("FEES_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	policy, err := calculator.ParseCreditPolicy(os.Getenv("FEES_CREDIT_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEES_CREDIT_POLICY: %w", err)
	}

	backend := strings.ToLower(getEnvOrDefault("FEES_STORE", StoreSQLite))
	if backend != StoreSQLite && backend != StoreXLSX {
		return nil, fmt.Errorf("invalid FEES_STORE %q: expected %s or %s", backend, StoreSQLite, StoreXLSX)
	}

	logFormat := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text"))
	if logFormat != "text" && logFormat != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: expected text or json", logFormat)
	}

	return &Config{
		Port: port,
		Store: StoreConfig{
			Backend:      backend,
			DBPath:       getEnvOrDefault("FEES_DB_PATH", "./data/fees.db"),
			WorkbookPath: os.Getenv("FEES_WORKBOOK_PATH"),
		},
		Term:         os.Getenv("FEES_TERM"),
		CreditPolicy: policy,
		Auth: AuthConfig{
			JWTSecret: os.Getenv("FEES_JWT_SECRET"),
			TokenTTL:  ttl,
		},
		MPesa: MPesaConfig{
			ConsumerKey:       os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:    os.Getenv("MPESA_CONSUMER_SECRET"),
			CallbackURL:       os.Getenv("MPESA_CALLBACK_URL"),
			Shortcode:         os.Getenv("MPESA_SHORTCODE"),
			WebhookSecretHash: os.Getenv("MPESA_WEBHOOK_SECRET_HASH"),
		},
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: logFormat,
	}, nil
}

// Validate checks that everything the server needs is set and reports all missing keys at once.
func (c *Config) Validate() error {
	var missing []string

	if c.Term == "" {
		missing = append(missing, "FEES_TERM")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "FEES_JWT_SECRET")
	}
	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			missing = append(missing, "FEES_DB_PATH")
		}
	case StoreXLSX:
		if c.Store.WorkbookPath == "" {
			missing = append(missing, "FEES_WORKBOOK_PATH")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid FEES_PORT: %d", c.Port)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return parsed, nil
}
