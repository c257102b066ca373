package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Stores fall back to in-memory implementations when their URLs
// are empty, which keeps local development and tests self-contained.
type Config struct {
	Addr string

	// TokenSigningKey signs session JWTs (HS256).
	TokenSigningKey string
	// KeyringSecrets maps key version -> base64 master secret for the
	// crypto envelope, e.g. "v1:...,v2:...". The highest version seals new
	// records; all versions stay resolvable for old ones.
	KeyringSecrets string

	// ReadHeaderTimeout and IdleTimeout shape the HTTP server.
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	SessionTTL    time.Duration
	SweepInterval time.Duration
	// StoreTimeout bounds every ledger/storage/key call. Timeout is treated
	// as operation failure, never as silent denial.
	StoreTimeout time.Duration

	PostgresURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("LEXGUARD_ADDR", ":8080"),
		TokenSigningKey:   envOr("LEXGUARD_TOKEN_SIGNING_KEY", "dev-secret-key-change-in-production"),
		KeyringSecrets:    os.Getenv("LEXGUARD_KEYRING"),
		ReadHeaderTimeout: envDuration("LEXGUARD_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       envDuration("LEXGUARD_IDLE_TIMEOUT", time.Minute),
		SessionTTL:        envDuration("LEXGUARD_SESSION_TTL", time.Hour),
		SweepInterval:     envDuration("LEXGUARD_SWEEP_INTERVAL", 5*time.Minute),
		StoreTimeout:      envDuration("LEXGUARD_STORE_TIMEOUT", 5*time.Second),
		PostgresURL:       os.Getenv("LEXGUARD_POSTGRES_URL"),
		RedisURL:          os.Getenv("LEXGUARD_REDIS_URL"),
		KafkaTopic:        envOr("LEXGUARD_KAFKA_TOPIC", "lexguard.audit"),
	}
	if brokers := os.Getenv("LEXGUARD_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
