package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all environment-driven settings for the bot.
type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPListenAddr string

	// Persistence. When DatabaseURL is set the Postgres backend is used,
	// otherwise the local SQLite file.
	DatabaseURL    string
	DatabaseSchema string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	WhatsAppStorePath string
	WhatsAppLogLevel  string

	MetricsNamespace string

	// StatsTimezone is the reference timezone for the "messages today"
	// calendar-day boundary.
	StatsTimezone string

	PixMerchantName string
	PixMerchantCity string
	PixMerchantKey  string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HTTPListenAddr:    listenAddr(),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DatabaseSchema:    getEnv("DATABASE_SCHEMA", "public"),
		SQLitePath:        getEnv("SQLITE_PATH", "data/database.db"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		WhatsAppStorePath: getEnv("WHATSAPP_STORE_PATH", "data/whatsapp.db"),
		WhatsAppLogLevel:  getEnv("WHATSAPP_LOG_LEVEL", "WARN"),
		MetricsNamespace:  getEnv("METRICS_NAMESPACE", "messageia"),
		StatsTimezone:     getEnv("STATS_TIMEZONE", "America/Sao_Paulo"),
		PixMerchantName:   getEnv("PIX_MERCHANT_NAME", "Vitor"),
		PixMerchantCity:   getEnv("PIX_MERCHANT_CITY", "Sao Paulo"),
		PixMerchantKey:    getEnv("PIX_MERCHANT_KEY", "16997454758"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RedisTLS, err = getEnvBool("REDIS_TLS", false); err != nil {
		return nil, err
	}
	if cfg.GeminiTimeout, err = getEnvDuration("GEMINI_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func listenAddr() string {
	if addr := os.Getenv("HTTP_LISTEN_ADDR"); addr != "" {
		return addr
	}
	// PORT is what most container platforms inject.
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":3000"
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
