package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Waiting-room configuration
	HoldDuration     time.Duration // how long a promoted member owns the seat-selection slot
	PresenceStale    time.Duration // heartbeat older than this means "not live"
	GhostGrace       time.Duration // how long a stale front member keeps their place
	TicketTTL        time.Duration // per-member metadata expiry
	PromotionLockTTL time.Duration
	FrontWindow      int // how many front-of-line members get liveness reconciled per heartbeat
	OrphanRetryLimit int

	// ETA estimation
	MinServiceSample   time.Duration
	DefaultServiceTime time.Duration

	// Admin
	AdminKeyHash string // bcrypt hash of the admin API key

	// Rate limiting
	JoinRateLimit int // max join attempts per IP per minute

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Waiting room
		HoldDuration:     getEnvAsDuration("HOLD_DURATION", "2m"),
		PresenceStale:    getEnvAsDuration("PRESENCE_STALE", "45s"),
		GhostGrace:       getEnvAsDuration("GHOST_GRACE", "30s"),
		TicketTTL:        getEnvAsDuration("TICKET_TTL", "2h"),
		PromotionLockTTL: getEnvAsDuration("PROMOTION_LOCK_TTL", "3s"),
		FrontWindow:      getEnvAsInt("FRONT_WINDOW", 50),
		OrphanRetryLimit: getEnvAsInt("ORPHAN_RETRY_LIMIT", 10),

		// ETA
		MinServiceSample:   getEnvAsDuration("MIN_SERVICE_SAMPLE", "1s"),
		DefaultServiceTime: getEnvAsDuration("DEFAULT_SERVICE_TIME", "90s"),

		// Admin
		AdminKeyHash: getEnv("ADMIN_KEY_HASH", ""),

		// Rate limiting
		JoinRateLimit: getEnvAsInt("JOIN_RATE_LIMIT", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
