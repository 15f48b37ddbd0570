package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every externally tunable knob. It is built once in main and
// passed explicitly to each component; nothing reads the environment after
// startup.
type Config struct {
	Port string
	Env  string

	RedisURL    string
	PostgresDSN string

	KafkaBrokers []string
	KafkaTopic   string

	CatalogURL     string
	CartURL        string
	RequestTimeout time.Duration

	BatchSize       int
	MaxConcurrent   int
	MaxRows         int
	MaxUploadBytes  int64
	MaxSuggestions  int
	MinSimilarity   float64
	CustomerSegment string

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	BreakerThreshold int
	BreakerTimeout   time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int

	JWTSecret  string
	StorageDir string
}

// Load reads configuration from the environment with sane defaults.
func Load() Config {
	return Config{
		Port: getEnv("PORT", "8097"),
		Env:  getEnv("ENV", "development"),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		KafkaBrokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
		KafkaTopic:   getEnv("KAFKA_TOPIC", "bulk-order.completed"),

		CatalogURL:     getEnv("CATALOG_SERVICE_URL", "http://localhost:8082"),
		CartURL:        getEnv("CART_SERVICE_URL", "http://localhost:8086"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),

		BatchSize:       getIntEnv("BATCH_SIZE", 10),
		MaxConcurrent:   getIntEnv("MAX_CONCURRENT_BATCHES", 3),
		MaxRows:         getIntEnv("MAX_ROWS", 1000),
		MaxUploadBytes:  int64(getIntEnv("MAX_UPLOAD_BYTES", 5*1024*1024)),
		MaxSuggestions:  getIntEnv("MAX_SUGGESTIONS", 3),
		MinSimilarity:   getFloatEnv("MIN_SIMILARITY", 0.3),
		CustomerSegment: getEnv("CUSTOMER_SEGMENT", "consumer"),

		RetryMaxAttempts:  getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getDurationEnv("RETRY_INITIAL_DELAY", time.Second),
		RetryMaxDelay:     getDurationEnv("RETRY_MAX_DELAY", 10*time.Second),

		BreakerThreshold: getIntEnv("BREAKER_THRESHOLD", 5),
		BreakerTimeout:   getDurationEnv("BREAKER_TIMEOUT", 30*time.Second),

		RateLimitPerSecond: getFloatEnv("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 10),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		StorageDir: getEnv("BULK_STORAGE_DIR", "./data/bulk_orders"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
