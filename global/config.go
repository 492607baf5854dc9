package global

import (
	"os"
	"strconv"
	"time"
)

// AppConfig carries everything the gateway needs at boot. Values come from
// the environment with development fallbacks.
type AppConfig struct {
	HTTPAddr  string
	GatewayID string
	NodeID    int

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL string

	JWTSecret string
	JWTTTL    time.Duration

	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration

	IdleSweepEvery time.Duration
	IdleAfter      time.Duration
	PresenceTTL    time.Duration
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		GatewayID: getEnv("GATEWAY_ID", "rt_gw-1"),
		NodeID:    getEnvInt("GATEWAY_NODE", 1),

		MongoURI: getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGODB_DB", "blueprint-xyz"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		NatsURL: getEnv("NATS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "fallback-jwt-secret-change-in-production"),
		JWTTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		PingInterval: getEnvDuration("WS_PING_INTERVAL", 25*time.Second),
		PongWait:     getEnvDuration("WS_PONG_WAIT", 60*time.Second),
		WriteWait:    getEnvDuration("WS_WRITE_WAIT", 10*time.Second),

		IdleSweepEvery: getEnvDuration("IDLE_SWEEP_EVERY", 60*time.Second),
		IdleAfter:      getEnvDuration("IDLE_AFTER", 5*time.Minute),
		PresenceTTL:    getEnvDuration("PRESENCE_TTL", 2*time.Minute),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
