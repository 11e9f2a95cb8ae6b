package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port                  string
	DatabaseURL           string
	StoreBackend          string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StatsCacheTTL         time.Duration
	DefaultServiceSeconds int
	TimeZone              string
	StaffAPIToken         string
	RateLimitPerMinute    int
	RateLimitBurst        int
	LogLevel              string
	LogFormat             string
}

// LoadDotEnv merges a .env file into the environment. Variables that are already set win and a
// missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	databaseURL := os.Getenv("DB_DSN")

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if backend == "" {
		backend = BackendPostgres
		if databaseURL == "" {
			backend = BackendMemory
		}
	}

	return Config{
		Port:                  port,
		DatabaseURL:           databaseURL,
		StoreBackend:          backend,
		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               readInt("REDIS_DB", 0),
		StatsCacheTTL:         readDurationSeconds("STATS_CACHE_TTL_SECONDS", 5),
		DefaultServiceSeconds: readInt("DEFAULT_SERVICE_SECONDS", 300),
		TimeZone:              readString("TIMEZONE", "Local"),
		StaffAPIToken:         os.Getenv("STAFF_API_TOKEN"),
		RateLimitPerMinute:    readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:        readInt("RATE_LIMIT_BURST", 30),
		LogLevel:              readString("LOG_LEVEL", "info"),
		LogFormat:             readString("LOG_FORMAT", "text"),
	}
}

// Location resolves TimeZone; calendar days are cut at midnight in this zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DB_DSN is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
