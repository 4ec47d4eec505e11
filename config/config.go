package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the environment (optionally via .env) with simple defaults.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	JWTSecret     string
	JWTExpiryHour int

	// Coin economy. Amounts are whole coins.
	StartingCoins  int64
	DownloadCost   int64
	DedicationCost int64
	PremiumCost    int64

	// Promo codes that flip the premium flag. PromoCodeFile, when set,
	// is watched and reloaded on change.
	PromoCodeFile string

	// Hosted completion endpoint for track trivia.
	TriviaAPIURL string
	TriviaAPIKey string
	TriviaModel  string

	// Offline cache directory for downloaded audio.
	OfflineCacheDir string

	// Playback snapshots older than this many days are pruned.
	SnapshotRetentionDays int

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for secrets
		DBName:     getEnv("DB_NAME", "coinfm"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "coinfm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		JWTSecret:     getEnv("JWT_SECRET", "coinfm-dev-secret"),
		JWTExpiryHour: getEnvInt("JWT_EXPIRY_HOUR", 72),

		StartingCoins:  getEnvInt64("STARTING_COINS", 20),
		DownloadCost:   getEnvInt64("DOWNLOAD_COST", 5),
		DedicationCost: getEnvInt64("DEDICATION_COST", 5),
		PremiumCost:    getEnvInt64("PREMIUM_COST", 50),

		PromoCodeFile: getEnv("PROMO_CODE_FILE", ""),

		TriviaAPIURL: getEnv("TRIVIA_API_URL", ""),
		TriviaAPIKey: os.Getenv("TRIVIA_API_KEY"),
		TriviaModel:  getEnv("TRIVIA_MODEL", "gpt-4o-mini"),

		OfflineCacheDir: getEnv("OFFLINE_CACHE_DIR", "offline"),

		SnapshotRetentionDays: getEnvInt("SNAPSHOT_RETENTION_DAYS", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
