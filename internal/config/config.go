package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration

	RedisURL string

	SearchEndpoint  string
	SearchAPIKey    string
	SearchIndexName string

	StorageBucket string
	StoragePrefix string

	AgentEndpoint string
	AgentAPIKey   string
	AgentID       string
	AgentModel    string

	QueueWorkers    int
	QueueMaxRetries int

	Company CompanyConfig
}

// CompanyConfig identifies the issuing company on generated invoices.
type CompanyConfig struct {
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
	TaxID   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "invoicehub"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "invoicehub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: time.Duration(getenvInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,

		RedisURL: getenv("REDIS_URL", "redis://localhost:6379"),

		SearchEndpoint:  strings.TrimSpace(getenv("SEARCH_ENDPOINT", "")),
		SearchAPIKey:    strings.TrimSpace(getenv("SEARCH_API_KEY", "")),
		SearchIndexName: getenv("SEARCH_INDEX_NAME", "invoices-index"),

		StorageBucket: strings.TrimSpace(getenv("STORAGE_BUCKET", "")),
		StoragePrefix: getenv("STORAGE_PREFIX", "invoices"),

		AgentEndpoint: strings.TrimSpace(getenv("AGENT_ENDPOINT", "")),
		AgentAPIKey:   strings.TrimSpace(getenv("AGENT_API_KEY", "")),
		AgentID:       strings.TrimSpace(getenv("AGENT_ID", "")),
		AgentModel:    getenv("AGENT_MODEL", "gpt-4o"),

		QueueWorkers:    getenvInt("QUEUE_WORKERS", 3),
		QueueMaxRetries: getenvInt("QUEUE_MAX_RETRIES", 3),

		Company: CompanyConfig{
			Name:    getenv("COMPANY_NAME", "Professional Services Inc."),
			Address: getenv("COMPANY_ADDRESS", "123 Business Street, Suite 100, Business City, BC 12345"),
			Phone:   getenv("COMPANY_PHONE", "+1 (555) 123-4567"),
			Email:   getenv("COMPANY_EMAIL", "billing@professionalservices.com"),
			Website: getenv("COMPANY_WEBSITE", "www.professionalservices.com"),
			TaxID:   getenv("COMPANY_TAX_ID", "TAX-123456789"),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
