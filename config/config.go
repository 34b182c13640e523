package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port      string
	JWTSecret string
	JWTExpiry int // in hours
	LogLevel  string

	// Comma-separated list of allowed websocket origins. "*" allows all.
	AllowedOrigins []string

	MaxMessageLength int
	MaxFrameSize     int64

	// Empty means the in-memory stores are used.
	DatabaseDSN string

	// Empty means the in-process broker is used.
	RedisAddr string

	ModerationURL         string
	ModerationAPIKey      string
	ModerationTimeout     time.Duration
	ModerationMaxAttempts int

	AdminUsername string
	AdminPassword string
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8081"),
		JWTSecret: getEnv("JWT_SECRET", "dev-super-secret-change-me"),
		JWTExpiry: getEnvAsInt("JWT_EXPIRY", 24),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "*")),

		MaxMessageLength: getEnvAsInt("MAX_MESSAGE_LENGTH", 1000),
		MaxFrameSize:     int64(getEnvAsInt("MAX_FRAME_SIZE", 1<<16)),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		ModerationURL:         getEnv("MODERATION_URL", ""),
		ModerationAPIKey:      getEnv("MODERATION_API_KEY", ""),
		ModerationTimeout:     time.Duration(getEnvAsInt("MODERATION_TIMEOUT_SECONDS", 10)) * time.Second,
		ModerationMaxAttempts: getEnvAsInt("MODERATION_MAX_ATTEMPTS", 3),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
