package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// UploadConfig holds artifact staging limits and addressing.
// Scan uploads and profile images carry independent size ceilings.
type UploadConfig struct {
	MaxScanBytes    int64
	MaxProfileBytes int64
	// PublicBaseURL is the stable prefix under which staged artifacts are
	// externally addressable, e.g. https://cdn.example.com/uploads
	PublicBaseURL string
}

// InferenceConfig holds the remote prediction service settings.
type InferenceConfig struct {
	// URL of the ML predict endpoint, e.g. http://ml-service:8001/predict
	URL string
	// Timeout bounds the whole round trip; the call is never retried.
	Timeout time.Duration
}

// AuthConfig holds identity verification settings. Token issuance itself
// is the identity provider's concern; this service only verifies.
type AuthConfig struct {
	JWTSecret string
}

// RedisConfig holds settings for the statistics cache. An empty Addr
// disables caching entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StatsTTL time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Upload    UploadConfig
	Inference InferenceConfig
	Auth      AuthConfig
	Redis     RedisConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Upload: UploadConfig{
			MaxScanBytes:    getEnvInt64("UPLOAD_MAX_SCAN_BYTES", 5*1024*1024),
			MaxProfileBytes: getEnvInt64("UPLOAD_MAX_PROFILE_BYTES", 2*1024*1024),
			PublicBaseURL:   getEnv("UPLOAD_PUBLIC_BASE_URL", "/uploads"),
		},
		Inference: InferenceConfig{
			URL:     getEnv("ML_URL", "http://localhost:8001/predict"),
			Timeout: time.Duration(getEnvInt("ML_TIMEOUT_SEC", 30)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			StatsTTL: time.Duration(getEnvInt("REDIS_STATS_TTL_SEC", 300)) * time.Second,
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
