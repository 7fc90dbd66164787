package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB     DBConfig
	Redis  RedisConfig
	Rabbit RabbitConfig
	Auth   AuthConfig

	CORSOrigins []string
	RateLimit   string

	ReconcileSchedule   string
	OrderNumberAttempts int
}

type DBConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RabbitConfig struct {
	URL      string
	Exchange string
}

type AuthConfig struct {
	JWTSecret string
}

// Enabled reports whether bearer tokens are checked on /api routes.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return Config{
		Env:      getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			URL:          os.Getenv("DB_URL"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 10),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Rabbit: RabbitConfig{
			URL:      os.Getenv("RABBIT_URL"),
			Exchange: getEnv("RABBIT_EXCHANGE", "crm_events"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RateLimit:           getEnv("RATE_LIMIT", "200-M"),
		ReconcileSchedule:   getEnv("RECONCILE_SCHEDULE", "0 3 * * *"),
		OrderNumberAttempts: getEnvInt("ORDER_NUMBER_ATTEMPTS", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
