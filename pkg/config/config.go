package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Import        ImportConfig
	Storage       StorageConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	MaxUploadBytes int64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// ImportConfig tunes the import engine.
type ImportConfig struct {
	Timezone         string
	DuplicatePolicy  string
	MemberPolicy     string
	CompensationMode string
	Retries          int
	RetryBase        time.Duration
	WritesPerSecond  float64
	User             string
	Schedule         string
	ScheduleEnabled  bool
}

type StorageConfig struct {
	Path string
}

// NotifyConfig configures the batch summary e-mail. Without an API key no
// mail is sent.
type NotifyConfig struct {
	ResendAPIKey string
	FromEmail    string
	Recipients   []string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxUploadBytes: int64(getEnvAsInt("SERVER_MAX_UPLOAD_MB", 10)) << 20,
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "koperasi"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
		},
		Import: ImportConfig{
			Timezone:         getEnv("IMPORT_TIMEZONE", "Asia/Jakarta"),
			DuplicatePolicy:  getEnv("IMPORT_DUPLICATE_POLICY", "warn"),
			MemberPolicy:     getEnv("IMPORT_MEMBER_POLICY", "closest"),
			CompensationMode: getEnv("IMPORT_COMPENSATION", "flag"),
			Retries:          getEnvAsInt("IMPORT_RETRIES", 3),
			RetryBase:        getEnvAsDuration("IMPORT_RETRY_BASE", 100*time.Millisecond),
			WritesPerSecond:  getEnvAsFloat("IMPORT_WRITES_PER_SECOND", 0),
			User:             getEnv("IMPORT_USER", "Admin"),
			Schedule:         getEnv("IMPORT_SCHEDULE", "0 15 * * *"),
			ScheduleEnabled:  getEnvAsBool("IMPORT_SCHEDULE_ENABLED", true),
		},
		Storage: StorageConfig{
			Path: getEnv("STORAGE_PATH", "./uploads"),
		},
		Notify: NotifyConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("RESEND_FROM_EMAIL", ""),
			Recipients:   getEnvAsList("NOTIFY_RECIPIENTS", nil),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Import.DuplicatePolicy {
	case "warn", "block":
	default:
		errs = append(errs, fmt.Errorf("IMPORT_DUPLICATE_POLICY must be warn or block, got %q", c.Import.DuplicatePolicy))
	}
	switch c.Import.MemberPolicy {
	case "closest", "store_order":
	default:
		errs = append(errs, fmt.Errorf("IMPORT_MEMBER_POLICY must be closest or store_order, got %q", c.Import.MemberPolicy))
	}
	switch c.Import.CompensationMode {
	case "flag", "delete":
	default:
		errs = append(errs, fmt.Errorf("IMPORT_COMPENSATION must be flag or delete, got %q", c.Import.CompensationMode))
	}
	if c.Import.Retries < 0 {
		errs = append(errs, errors.New("IMPORT_RETRIES must not be negative"))
	}
	if c.Notify.ResendAPIKey != "" && len(c.Notify.Recipients) == 0 {
		errs = append(errs, errors.New("NOTIFY_RECIPIENTS is required when RESEND_API_KEY is set"))
	}
	return errors.Join(errs...)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr is the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
