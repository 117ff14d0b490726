// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	Env        string
	LogLevel   string

	// Mode
	LocalOnly bool // environment lock: remote store never used

	// Local store
	LocalStore string // sqlite | postgres | redis | memory
	SQLitePath string
	RedisURL   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	DBSSLMode  string

	// Remote store
	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	FirestoreCollection     string

	// Auth
	ServiceExpectedToken string
	AdminPassword        string
	AdminPasswordHash    string

	// R2 backups
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2BucketName      string
	R2PublicURL       string

	// CORS
	AllowedOrigins string

	// Maintenance
	RetentionDays   int
	ProbeInterval   time.Duration
	MaintenanceHour int
}

func Load() (*Config, error) {
	if os.Getenv("ENV") != "production" {
		_ = godotenv.Load() // optional .env for local
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8085"
	}

	retention, err := strconv.Atoi(getEnv("RETENTION_DAYS", "365"))
	if err != nil || retention < 0 {
		return nil, fmt.Errorf("invalid RETENTION_DAYS: %q", os.Getenv("RETENTION_DAYS"))
	}

	probe, err := time.ParseDuration(getEnv("PROBE_INTERVAL", "30s"))
	if err != nil || probe <= 0 {
		return nil, fmt.Errorf("invalid PROBE_INTERVAL: %q", os.Getenv("PROBE_INTERVAL"))
	}

	hour, err := strconv.Atoi(getEnv("MAINTENANCE_HOUR", "3"))
	if err != nil || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("invalid MAINTENANCE_HOUR: %q", os.Getenv("MAINTENANCE_HOUR"))
	}

	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	if err := checkOrigins(origins); err != nil {
		return nil, err
	}

	return &Config{
		ServerPort: port,
		Env:        getEnv("ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		LocalOnly: parseBool(os.Getenv("LOCAL_ONLY")),

		LocalStore: strings.ToLower(getEnv("LOCAL_STORE", "sqlite")),
		SQLitePath: getEnv("SQLITE_PATH", "rdv_local.db"),
		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPass:     getEnv("DB_PASS", "postgres"),
		DBName:     getEnv("DB_NAME", "rdv_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		FirestoreCollection:     getEnv("FIRESTORE_COLLECTION", "rendez-vous"),

		ServiceExpectedToken: getEnv("SERVICE_TOKEN", "your-secret-service-token"),
		AdminPassword:        os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash:    os.Getenv("ADMIN_PASSWORD_HASH"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		AllowedOrigins: origins,

		RetentionDays:   retention,
		ProbeInterval:   probe,
		MaintenanceHour: hour,
	}, nil
}

// R2Enabled reports whether off-site backups are configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2BucketName != ""
}

// PostgresDSN builds the connection string for the postgres local store.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName, c.DBSSLMode,
	)
}

// checkOrigins refuses a wildcard: the session cookie is sent with
// credentialed CORS requests, which must name their origins.
func checkOrigins(origins string) error {
	for _, origin := range strings.Split(origins, ",") {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("invalid ALLOWED_ORIGINS: %q, list explicit origins instead of *", origins)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
