package platform

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// LoadEnv reads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Failed to load env file")
		}
	}
}

func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvFloat(key string, defaultVal float64) float64 {
	if val, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func GetEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if strings.ToLower(val) == "true" || val == "1" {
			return true
		}
		return false
	}
	return defaultVal
}

// GetEnvDuration parses values like "30s" or "2m".
func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Config holds process settings shared by the server and CLI.
type Config struct {
	Env            string
	Port           int
	LogLevel       string
	StoreDriver    string // sqlite, postgres or snapshot
	StoreDSN       string
	TablesFile     string
	ClickHouseDSN  string
	WebhookURL     string
	WebhookToken   string
	GeminiAPIKey   string
	GeminiModel    string
	S3Bucket       string
	S3Prefix       string
	S3Endpoint     string
	AWSRegion      string
	RequestTimeout time.Duration
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Env:            GetEnv("ENV", "production"),
		Port:           GetEnvInt("PORT", 8080),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		StoreDriver:    GetEnv("STORE_DRIVER", "sqlite"),
		StoreDSN:       GetEnv("STORE_DSN", "file:foodcost.db"),
		TablesFile:     GetEnv("TABLES_FILE", ""),
		ClickHouseDSN:  GetEnv("CLICKHOUSE_DSN", ""),
		WebhookURL:     GetEnv("UPDATE_WEBHOOK_URL", ""),
		WebhookToken:   GetEnv("UPDATE_WEBHOOK_TOKEN", ""),
		GeminiAPIKey:   GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:    GetEnv("GEMINI_MODEL", ""),
		S3Bucket:       GetEnv("EXPORT_BUCKET", ""),
		S3Prefix:       GetEnv("EXPORT_PREFIX", "invoices/"),
		S3Endpoint:     GetEnv("EXPORT_ENDPOINT", ""),
		AWSRegion:      GetEnv("AWS_REGION", "us-east-1"),
		RequestTimeout: GetEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
	}
}

// Development reports whether ENV selects development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}
