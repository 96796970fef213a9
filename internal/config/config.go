package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Tax       TaxConfig
	Brokerage BrokerageConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// TaxPolicy selects how realized gains become tax liabilities.
type TaxPolicy string

const (
	// TaxPolicyWithholding withholds tax from withdrawal proceeds at redemption time.
	TaxPolicyWithholding TaxPolicy = "withholding"
	// TaxPolicyQuarterly records realized gains with zero withholding; settlement is
	// aggregated per quarter.
	TaxPolicyQuarterly TaxPolicy = "quarterly"
)

// TaxConfig holds the tax policy applied to redemptions. It is passed explicitly
// into the tax engine at construction time rather than read from global state.
type TaxConfig struct {
	Policy TaxPolicy
	Rate   decimal.Decimal // e.g. 0.37
}

// BrokerageConfig holds settings for the configured valuation sources.
type BrokerageConfig struct {
	// FernetKey encrypts brokerage API tokens at rest. Base64, 32 bytes.
	FernetKey string
	// DefaultSource is the source used for NAV valuation runs.
	DefaultSource string
}

// SchedulerConfig holds the in-process cron trigger settings.
type SchedulerConfig struct {
	Enabled bool
	// NavSpec is the cron spec for the daily NAV run.
	NavSpec string
	// EtlSpec is the cron spec for the periodic ETL refresh.
	EtlSpec string
	// EtlWindowDays is how far back the periodic ETL re-extracts.
	EtlWindowDays int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	taxRate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.37"))
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE: %w", err)
	}

	policy := TaxPolicy(getEnv("TAX_POLICY", string(TaxPolicyWithholding)))
	if policy != TaxPolicyWithholding && policy != TaxPolicyQuarterly {
		return nil, fmt.Errorf("invalid TAX_POLICY: %q", policy)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/fund_engine.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Tax: TaxConfig{
			Policy: policy,
			Rate:   taxRate,
		},
		Brokerage: BrokerageConfig{
			FernetKey:     getEnv("BROKERAGE_FERNET_KEY", ""),
			DefaultSource: getEnv("BROKERAGE_DEFAULT_SOURCE", "ibkr"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getEnvBool("SCHEDULER_ENABLED", false),
			NavSpec:       getEnv("SCHEDULER_NAV_SPEC", "0 18 * * 1-5"),
			EtlSpec:       getEnv("SCHEDULER_ETL_SPEC", "30 */6 * * *"),
			EtlWindowDays: getEnvInt("SCHEDULER_ETL_WINDOW_DAYS", 7),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
