package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Firebase  FirebaseConfig
	Postgres  PostgresConfig
	S3        S3Config
	Redis     RedisConfig
	Auth      AuthConfig
	Audit     AuditConfig
	Scheduler SchedulerConfig
	DBPath    string
	LogFile   string
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	GinMode        string
}

type StoreConfig struct {
	Backend string // firebase, postgres or memory
	Timeout time.Duration
}

type FirebaseConfig struct {
	DatabaseURL     string
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

type PostgresConfig struct {
	DBURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// Enabled reports whether enough is configured to talk to a bucket.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type AuthConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	AdminPassword     string
	SessionSecret     string
}

type AuditConfig struct {
	Sink      string // sqlite or tree
	QueueSize int
}

type SchedulerConfig struct {
	Interval       time.Duration
	Cron           string
	AuditRetention time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("LISTEN_ADDR", ":8080"),
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
			GinMode:        getEnv("GIN_MODE", "release"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "firebase"),
			Timeout: getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		},
		Firebase: FirebaseConfig{
			DatabaseURL:     os.Getenv("FIREBASE_DATABASE_URL"),
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("SEARCH_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			AdminEmail:        os.Getenv("ADMIN_EMAIL"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			SessionSecret:     os.Getenv("SESSION_SECRET"),
		},
		Audit: AuditConfig{
			Sink:      getEnv("AUDIT_SINK", "sqlite"),
			QueueSize: getEnvInt("AUDIT_QUEUE_SIZE", 256),
		},
		Scheduler: SchedulerConfig{
			Cron:           os.Getenv("CATALOG_REFRESH_CRON"),
			Interval:       getEnvDuration("CATALOG_REFRESH_INTERVAL", 0),
			AuditRetention: getEnvDuration("AUDIT_RETENTION", 90*24*time.Hour),
		},
		DBPath:  getEnv("DB_PATH", "realtors.db"),
		LogFile: getEnv("LOG_FILE", "realtors.log"),
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("90s") and whole days ("90d").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if days, ok := strings.CutSuffix(val, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
