package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	HTTPPort int

	KafkaBrokerURL       string
	KafkaUserEventsTopic string
	KafkaConsumerGroup   string

	PayOSBaseURL     string
	PayOSClientID    string
	PayOSAPIKey      string
	PayOSChecksumKey string
	PayOSReturnURL   string
	PayOSCancelURL   string

	InvoiceServiceURL string

	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
	OutboxCleanupInterval time.Duration
	OutboxRetention       time.Duration

	ProcessedEventRetention       time.Duration
	ProcessedEventCleanupInterval time.Duration

	SagaSweepInterval    time.Duration
	SagaProcessingExpiry time.Duration
	SagaSuccessAckExpiry time.Duration
	SagaAuditInterval    time.Duration
	SagaAuditWindow      time.Duration
	SagaBatchSize        int

	MigrationsPath string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "payments_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")

	cfg.HTTPPort = getEnvAsInt("PAYMENTS_HTTP_PORT", 8082)

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaUserEventsTopic = getEnvOrDefault("KAFKA_USER_EVENTS_TOPIC", "user.registered")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "payments-service-group")

	cfg.PayOSBaseURL = getEnvOrDefault("PAYOS_BASE_URL", "")
	cfg.PayOSClientID = getEnvOrDefault("PAYOS_CLIENT_ID", "")
	cfg.PayOSAPIKey = getEnvOrDefault("PAYOS_API_KEY", "")
	cfg.PayOSChecksumKey = getEnvOrDefault("PAYOS_CHECKSUM_KEY", "")
	cfg.PayOSReturnURL = getEnvOrDefault("PAYOS_RETURN_URL", "http://localhost:3000/payment/return")
	cfg.PayOSCancelURL = getEnvOrDefault("PAYOS_CANCEL_URL", "http://localhost:3000/payment/cancel")

	cfg.InvoiceServiceURL = getEnvOrDefault("INVOICE_SERVICE_URL", "http://localhost:8083")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 50)
	cfg.OutboxCleanupInterval = getEnvAsDuration("OUTBOX_CLEANUP_INTERVAL", 1*time.Hour)
	cfg.OutboxRetention = getEnvAsDuration("OUTBOX_RETENTION", 7*24*time.Hour)

	cfg.ProcessedEventRetention = getEnvAsDuration("PROCESSED_EVENT_RETENTION", 30*24*time.Hour)
	cfg.ProcessedEventCleanupInterval = getEnvAsDuration("PROCESSED_EVENT_CLEANUP_INTERVAL", 6*time.Hour)

	cfg.SagaSweepInterval = getEnvAsDuration("SAGA_SWEEP_INTERVAL", 5*time.Minute)
	cfg.SagaProcessingExpiry = getEnvAsDuration("SAGA_PROCESSING_EXPIRY", 15*time.Minute)
	cfg.SagaSuccessAckExpiry = getEnvAsDuration("SAGA_SUCCESS_ACK_EXPIRY", 15*time.Minute)
	cfg.SagaAuditInterval = getEnvAsDuration("SAGA_AUDIT_INTERVAL", 6*time.Hour)
	cfg.SagaAuditWindow = getEnvAsDuration("SAGA_AUDIT_WINDOW", 24*time.Hour)
	cfg.SagaBatchSize = getEnvAsInt("SAGA_BATCH_SIZE", 100)

	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")

	return cfg, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
