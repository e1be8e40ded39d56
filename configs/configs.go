// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/navid-fn/tradequeue/internal/repository"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// Database selects and locates the queue/registry store.
	Database DatabaseConfig

	// Server contains HTTP listener settings.
	Server ServerConfig

	// AdminToken is the shared secret for admin routes. Empty disables them.
	AdminToken string

	// KafkaEvent contains Kafka connection settings for queue events.
	// An empty Broker disables publishing.
	KafkaEvent KafkaConfig

	// ClickHouseDSN is the audit sink connection string.
	ClickHouseDSN string

	// Ingester contains settings for the Kafka-to-ClickHouse ingester.
	Ingester IngesterConfig

	// RateLimit throttles trade submission per requester.
	RateLimit RateLimitConfig

	LogLevel string
	Debug    bool
}

type DatabaseConfig struct {
	// Driver is repository.DriverSQLite or repository.DriverPostgres.
	Driver string

	SQLitePath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

type ServerConfig struct {
	Port string
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic for queue events.
	Topic string

	// GroupID is the consumer group ID for the ingester.
	GroupID string
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of events to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

type RateLimitConfig struct {
	// PerMinute is the sustained submissions allowed per requester. Zero disables the limit.
	PerMinute int
	Burst     int
}

// DSN builds the connection string for the selected driver.
func (c DatabaseConfig) DSN() string {
	if c.Driver == repository.DriverPostgres {
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
		)
	}
	// busy_timeout lets a second process (cmd/migrate) wait for the writer.
	return c.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// getClickHouseDSN constructs the ClickHouse DSN from environment variables.
func getClickHouseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "user")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "password")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "db")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

func getDatabaseConfig() DatabaseConfig {
	driver := strings.ToLower(getEnv("DB_DRIVER", repository.DriverSQLite))
	if driver != repository.DriverPostgres {
		driver = repository.DriverSQLite
	}

	return DatabaseConfig{
		Driver:           driver,
		SQLitePath:       getEnv("SQLITE_PATH", "tradequeue.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnv("POSTGRES_DB", "tradequeue"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		Database: getDatabaseConfig(),
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		AdminToken: getEnv("ADMIN_TOKEN", ""),
		KafkaEvent: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", ""),
			Topic:   getEnv("KAFKA_EVENT_TOPIC", "tradequeue_events"),
			GroupID: getEnv("KAFKA_EVENT_GROUP_ID", "tradequeue-audit-ingester"),
		},
		ClickHouseDSN: getClickHouseDSN(),
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 30),
			Burst:     getEnvInt("SUBMIT_BURST", 5),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Debug:    getEnvBool("DEBUG", false),
	}
}

// NewLogger returns a text logger with full timestamps at the given level.
// Unknown levels fall back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
