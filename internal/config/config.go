package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port string

	// Contacts spreadsheet and its reload schedule (cron spec).
	ContactsFile   string
	ContactsReload string

	AssetsDir      string
	MaxUploadMB    int
	MaxUploadFiles int

	// WhatsApp device store (whatsmeow sqlstore).
	SessionDriver string
	SessionDSN    string

	CountryCode      string
	ReconnectBackoff time.Duration
	MediaDelay       time.Duration
	ContactDelay     time.Duration
	ContactJitter    time.Duration
	FFmpegPath       string

	// Delivery history database.
	DBDriver   string
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	LogLevel  string
	LogFormat string
	LogFile   string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file loaded, using process environment")
	}

	return &Config{
		Port:             getEnv("PORT", "3000"),
		ContactsFile:     getEnv("CONTACTS_FILE", "./contacts.xlsx"),
		ContactsReload:   getEnv("CONTACTS_RELOAD", "@every 30s"),
		AssetsDir:        getEnv("ASSETS_DIR", "./assets"),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 20),
		MaxUploadFiles:   getEnvInt("MAX_UPLOAD_FILES", 20),
		SessionDriver:    getEnv("SESSION_DRIVER", "sqlite3"),
		SessionDSN:       getEnv("SESSION_DSN", "file:session.db?_foreign_keys=on"),
		CountryCode:      getEnv("COUNTRY_CODE", "91"),
		ReconnectBackoff: getEnvDuration("RECONNECT_BACKOFF", 2*time.Second),
		MediaDelay:       getEnvDuration("MEDIA_DELAY", time.Second),
		ContactDelay:     getEnvDuration("CONTACT_DELAY", 1500*time.Millisecond),
		ContactJitter:    getEnvDuration("CONTACT_JITTER", time.Second),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBPath:           getEnv("DB_PATH", "./history.db"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBName:           getEnv("DB_NAME", "whatsapp_bulk"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogFile:          getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
