// Package config assembles server configuration from environment
// variables so main stays lean. Every knob has a development default;
// production deployments override through VIGIL_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "vigil/pkg/platform/strings"
)

// Config is the full service configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     RedisConfig
	Kafka     Kafka
	Gemini    Gemini
	Ledger    Ledger
	Webhook   Webhook
	Screening Screening
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// ServiceKeyHash is the bcrypt hash of the key machine callers
	// present on automation endpoints. Empty disables those endpoints.
	ServiceKeyHash string
}

// Postgres holds the connection string for the service's own database
// (alerts, reports, event outbox).
type Postgres struct {
	DSN string
}

// RedisConfig tunes the shared Redis client. An empty URL disables
// Redis-backed features (profile cache) rather than failing startup.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka lists the brokers for the screening event pipeline. Empty
// disables event publishing.
type Kafka struct {
	Brokers       []string
	ConsumerGroup string
}

// Gemini configures the narrative reasoner. An empty APIKey disables
// Gemini; the pipeline then runs rule-only assessments.
type Gemini struct {
	APIKey string
	Model  string
}

// Ledger selects the upstream data-store backend. Mode is one of
// "http" (BaseURL), "postgres" (DSN), or "memory" (seeded sample data).
type Ledger struct {
	Mode    string
	BaseURL string
	DSN     string
}

// Webhook configures alert delivery to case management. An empty URL
// disables dispatch; alerts are still persisted.
type Webhook struct {
	URL    string
	APIKey string
}

// Screening tunes the pipeline itself.
type Screening struct {
	FetchTimeout      time.Duration
	ReasonerTimeout   time.Duration
	DispatchTimeout   time.Duration
	ProfileCacheTTL   time.Duration
	BatchConcurrency  int
	HighRiskCountries []string // empty means the built-in default set
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:           envString("VIGIL_ADDR", ":8080"),
			JWTSigningKey:  envString("VIGIL_JWT_SIGNING_KEY", "dev-signing-key-change-in-production"),
			JWTIssuer:      envString("VIGIL_JWT_ISSUER", "vigil"),
			JWTAudience:    envString("VIGIL_JWT_AUDIENCE", "vigil-review"),
			ServiceKeyHash: envString("VIGIL_SERVICE_KEY_HASH", ""),
		},
		Postgres: Postgres{
			DSN: envString("VIGIL_POSTGRES_DSN", ""),
		},
		Redis: RedisConfig{
			URL:          envString("VIGIL_REDIS_URL", ""),
			PoolSize:     envInt("VIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VIGIL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VIGIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VIGIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:       envList("VIGIL_KAFKA_BROKERS"),
			ConsumerGroup: envString("VIGIL_KAFKA_GROUP", "vigil-events"),
		},
		Gemini: Gemini{
			APIKey: envString("VIGIL_GEMINI_API_KEY", ""),
			Model:  envString("VIGIL_GEMINI_MODEL", ""),
		},
		Ledger: Ledger{
			Mode:    envString("VIGIL_LEDGER_MODE", "memory"),
			BaseURL: envString("VIGIL_LEDGER_BASE_URL", ""),
			DSN:     envString("VIGIL_LEDGER_DSN", ""),
		},
		Webhook: Webhook{
			URL:    envString("VIGIL_WEBHOOK_URL", ""),
			APIKey: envString("VIGIL_WEBHOOK_API_KEY", ""),
		},
		Screening: Screening{
			FetchTimeout:      envDuration("VIGIL_FETCH_TIMEOUT", 10*time.Second),
			ReasonerTimeout:   envDuration("VIGIL_REASONER_TIMEOUT", 30*time.Second),
			DispatchTimeout:   envDuration("VIGIL_DISPATCH_TIMEOUT", 10*time.Second),
			ProfileCacheTTL:   envDuration("VIGIL_PROFILE_CACHE_TTL", 5*time.Minute),
			BatchConcurrency:  envInt("VIGIL_BATCH_CONCURRENCY", 4),
			HighRiskCountries: envList("VIGIL_HIGH_RISK_COUNTRIES"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList splits a comma-separated variable, trimming whitespace and
// dropping empty and duplicate entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := pstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
