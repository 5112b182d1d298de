package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource    string
	Port        string
	Env         string
	StoreDriver string
	LogLevel    string

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	JaegerEndpoint string

	TxTimeout       time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBSource:       os.Getenv("DB_SOURCE"),
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		StoreDriver:    getEnv("STORE_DRIVER", DriverPostgres),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSecret:      os.Getenv("JWT_PRIVATE_KEY"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "rental-events"),
		JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TxTimeout, err = getDuration("TX_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DBSource == "" {
			return nil, fmt.Errorf("DB_SOURCE environment variable is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_PRIVATE_KEY environment variable is required")
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
