package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Secret         string
	HTTPPort       string
	DatabaseDriver string
	DatabaseDSN    string

	LogLevel  string
	LogFormat string

	RedisAddr    string
	NotifyStream string
	WebhookURL   string

	DefaultRecipientPassword string
	HospitalsCSV             string
	AdminEmail               string
	AdminPassword            string
}

// Load reads configuration from the environment, after applying a .env
// file when one exists, with reasonable defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Secret:         getEnv("SECRET", "dev_secret"),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		NotifyStream:   getEnv("NOTIFY_STREAM", "donateblood:messages"),
		WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),

		DefaultRecipientPassword: os.Getenv("DEFAULT_RECIPIENT_PASSWORD"),
		HospitalsCSV:             getEnv("HOSPITALS_CSV", "assets/hospitals.csv"),
		AdminEmail:               os.Getenv("ADMIN_EMAIL"),
		AdminPassword:            os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres" {
		log.Printf("unsupported DATABASE_DRIVER %q, defaulting to sqlite", cfg.DatabaseDriver)
		cfg.DatabaseDriver = "sqlite"
	}

	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	if cfg.DatabaseDSN == "" {
		if cfg.DatabaseDriver == "postgres" {
			cfg.DatabaseDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				getEnv("DB_USER", "postgres"),
				os.Getenv("DB_PASSWORD"),
				getEnv("DB_HOST", "localhost"),
				getEnv("DB_PORT", "5432"),
				getEnv("DB_NAME", "donateblood"))
		} else {
			cfg.DatabaseDSN = "file:donateblood.db?_pragma=busy_timeout(5000)"
		}
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
