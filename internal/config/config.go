// Package config loads sentineld's runtime configuration from a .env
// file and the process environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the daemon needs at
// startup.
type Config struct {
	SignatureDBPath   string
	QuarantineRoot    string
	ListenAddr        string
	JWTSecret         string
	LogLevel          string
	HeuristicsEnabled bool
	MonitorEnabled    bool
	MonitorRoots      []string
	DBHost            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBPort            string
	DBSSLMode         string
}

// Load reads a .env file if present (a missing file is not an error)
// and returns a Config populated from the environment, applying
// sensible development defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		SignatureDBPath:   getEnv("SIGNATURE_DB_PATH", "signatures.db"),
		QuarantineRoot:    getEnv("QUARANTINE_ROOT", "quarantine"),
		ListenAddr:        getEnv("LISTEN_ADDR", ":8443"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HeuristicsEnabled: getBool("HEURISTICS_ENABLED", true),
		MonitorEnabled:    getBool("MONITOR_ENABLED", false),
		MonitorRoots:      splitNonEmpty(os.Getenv("MONITOR_ROOTS")),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBUser:            getEnv("DB_USER", "sentineld"),
		DBPassword:        getEnv("DB_PASSWORD", "sentineld"),
		DBName:            getEnv("DB_NAME", "sentineld_av"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
