package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pixellocker/pkg/domain"
)

// Database drivers accepted by DATABASE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Verdict cache backends accepted by VERDICT_CACHE_BACKEND.
const (
	CacheNone  = "none"
	CacheLocal = "local"
	CacheRedis = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration

	RequireIssuerRole bool
	RequireProof      bool
	// RoleOwner is the bootstrap owner; ZeroAddress when unset.
	RoleOwner domain.Address

	LedgerTxTimeout time.Duration

	VerdictCacheBackend string
	VerdictCacheTTL     time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

// DevJWTSigningKey is used when JWT_SIGNING_KEY is unset. Production refuses it.
const DevJWTSigningKey = "dev-secret-key-change-in-production"

var TokenTTL = 15 * time.Minute
var LedgerTxTimeout = 5 * time.Second
var VerdictCacheTTL = 30 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed durations and integers fall back to defaults; unknown drivers,
// cache backends and owner addresses are errors.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          getEnv("PIXELLOCKER_ADDR", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "dev"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:     getEnv("JWT_ISSUER", "pixellocker"),
		JWTAudience:   getEnv("JWT_AUDIENCE", "pixellocker-api"),
		TokenTTL:      getDuration("TOKEN_TTL", TokenTTL),

		RequireIssuerRole: os.Getenv("REQUIRE_ISSUER_ROLE") == "true",
		RequireProof:      os.Getenv("REQUIRE_PROOF") == "true",
		RoleOwner:         domain.ZeroAddress,

		LedgerTxTimeout: getDuration("LEDGER_TX_TIMEOUT", LedgerTxTimeout),

		VerdictCacheBackend: strings.ToLower(getEnv("VERDICT_CACHE_BACKEND", CacheLocal)),
		VerdictCacheTTL:     getDuration("VERDICT_CACHE_TTL", VerdictCacheTTL),

		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DATABASE_DRIVER", DriverMemory)),
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   getEnv("LEDGER_EVENTS_TOPIC", "pixellocker.ledger.events"),
		},
	}

	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = DevJWTSigningKey
	}

	if owner := os.Getenv("ROLE_OWNER"); owner != "" {
		addr, err := domain.ParseAddress(owner)
		if err != nil {
			return Server{}, fmt.Errorf("ROLE_OWNER: %w", err)
		}
		cfg.RoleOwner = addr
	}

	switch cfg.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if cfg.Database.URL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required for driver %q", cfg.Database.Driver)
		}
	default:
		return Server{}, fmt.Errorf("DATABASE_DRIVER: unsupported driver %q", cfg.Database.Driver)
	}

	switch cfg.VerdictCacheBackend {
	case CacheNone, CacheLocal:
	case CacheRedis:
		if cfg.Redis.URL == "" {
			return Server{}, fmt.Errorf("REDIS_URL is required for the redis verdict cache")
		}
	default:
		return Server{}, fmt.Errorf("VERDICT_CACHE_BACKEND: unsupported backend %q", cfg.VerdictCacheBackend)
	}

	return cfg, nil
}

// IsProduction reports whether the dev signing key must be rejected.
func (s Server) IsProduction() bool {
	return s.Environment == "production" || s.Environment == "prod"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
