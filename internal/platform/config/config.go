// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "intellikyc/pkg/platform/strings"
)

// RedisConfig holds connection settings for the optional Redis proof store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds connection settings for the optional audit event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// Ledger settings.
	Difficulty   int
	StoragePath  string
	AutoMine     bool
	MineInterval time.Duration

	// Credential settings.
	RSAKeyBits int

	// Access token settings.
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration

	// Optional backends. Empty URL/DSN/brokers means the in-memory fallback.
	Redis       RedisConfig
	PostgresDSN string
	Kafka       KafkaConfig

	AuditBufferSize int
}

// FromEnv reads configuration from the environment, applying development
// defaults for anything unset.
func FromEnv() Config {
	cfg := Config{
		Addr:            envString("INTELLIKYC_ADDR", ":8080"),
		Difficulty:      envInt("INTELLIKYC_DIFFICULTY", 2),
		StoragePath:     envString("INTELLIKYC_STORAGE_PATH", "data"),
		AutoMine:        envString("INTELLIKYC_AUTO_MINE", "true") == "true",
		MineInterval:    envDuration("INTELLIKYC_MINE_INTERVAL", 30*time.Second),
		RSAKeyBits:      envInt("INTELLIKYC_RSA_KEY_BITS", 2048),
		JWTSigningKey:   envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envString("JWT_ISSUER", "intellikyc"),
		JWTAudience:     envString("JWT_AUDIENCE", "intellikyc-api"),
		TokenTTL:        envDuration("JWT_TOKEN_TTL", time.Hour),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		AuditBufferSize: envInt("INTELLIKYC_AUDIT_BUFFER", 256),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envString("KAFKA_AUDIT_TOPIC", "intellikyc.audit"),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strutil.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
