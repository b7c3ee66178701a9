package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string
	DBPath        string
	SpoolPath     string
	SubmitURL     string
	SubmitTimeout time.Duration
	PhotoQuota    int
	MaxPhotoBytes int64
	DraftKey      string
	SessionIdle   time.Duration
	LogLevel      string
	LogFile       string
}

// Load reads the configuration from the environment. Variables found in a
// .env file in the working directory are applied first; the real
// environment wins over the file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DBPath:        getEnv("DB_PATH", "/data/listingwizard.db"),
		SpoolPath:     getEnv("SPOOL_PATH", "/data/spool"),
		SubmitURL:     getEnv("SUBMIT_URL", "http://localhost:9090/listings"),
		SubmitTimeout: getEnvDuration("SUBMIT_TIMEOUT", 60*time.Second),
		PhotoQuota:    getEnvInt("PHOTO_QUOTA", 100),
		MaxPhotoBytes: int64(getEnvInt("MAX_PHOTO_BYTES", 10<<20)),
		DraftKey:      getEnv("DRAFT_KEY", "listing_draft"),
		SessionIdle:   getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", val)
		return defaultVal
	}
	return d
}
