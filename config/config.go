package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	MetricsAddr string
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Queue       QueueConfig
	Scheduler   SchedulerConfig
	Lock        LockConfig
	Payment     PaymentConfig
	Log         LogConfig
}

type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
}

type QueueConfig struct {
	EntryWindow        time.Duration
	AdmissionBatchSize int
	AdmissionInterval  time.Duration
	ExpirationInterval time.Duration
}

type SchedulerConfig struct {
	ShuffleLead time.Duration
}

type LockConfig struct {
	AtMostFor  time.Duration
	AtLeastFor time.Duration
}

type PaymentConfig struct {
	Timeout time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9102"),
		SQLite: SQLiteConfig{
			Path:        getEnv("SQLITE_PATH", "admission.db"),
			BusyTimeout: getEnvAsDuration("SQLITE_BUSY_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", true),
		},
		Queue: QueueConfig{
			EntryWindow:        getEnvAsDuration("QUEUE_ENTRY_WINDOW", 15*time.Minute),
			AdmissionBatchSize: getEnvAsInt("QUEUE_ADMISSION_BATCH_SIZE", 100),
			AdmissionInterval:  getEnvAsDuration("QUEUE_ADMISSION_INTERVAL", 10*time.Second),
			ExpirationInterval: getEnvAsDuration("QUEUE_EXPIRATION_INTERVAL", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			ShuffleLead: getEnvAsDuration("SCHEDULER_SHUFFLE_LEAD", 10*time.Minute),
		},
		Lock: LockConfig{
			AtMostFor:  getEnvAsDuration("LOCK_AT_MOST_FOR", 30*time.Second),
			AtLeastFor: getEnvAsDuration("LOCK_AT_LEAST_FOR", 2*time.Second),
		},
		Payment: PaymentConfig{
			Timeout: getEnvAsDuration("PAYMENT_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Queue.EntryWindow <= 0 {
		return fmt.Errorf("entry window must be positive, got %v", c.Queue.EntryWindow)
	}

	if c.Queue.AdmissionBatchSize <= 0 {
		return fmt.Errorf("admission batch size must be positive, got %d", c.Queue.AdmissionBatchSize)
	}

	if c.Lock.AtLeastFor > c.Lock.AtMostFor {
		return fmt.Errorf("lock at-least-for (%v) must not exceed at-most-for (%v)",
			c.Lock.AtLeastFor, c.Lock.AtMostFor)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
