package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv    string
	Port       string
	PathPrefix string
	JWTSecret  string
	LogLevel   string
	Database   DatabaseConfig
	Store      StoreConfig
	Storage    StorageConfig
	Cache      CacheConfig
	Sealing    SealingConfig
	Workflow   WorkflowConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
	DataPath string // embedded postgres data directory
}

// StoreConfig selects where applications and activity logs live.
// Users always live in the relational database.
type StoreConfig struct {
	Backend           string // postgres, dynamodb, memory
	AWSRegion         string
	DynamoEndpoint    string // non-empty for DynamoDB Local
	ApplicationsTable string
	LogsTable         string
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Backend    string // local, s3, memory
	LocalDir   string
	Bucket     string
	Endpoint   string // non-empty for LocalStack / MinIO
	PresignTTL time.Duration
}

// CacheConfig holds role cache configuration
type CacheConfig struct {
	RedisURL string
	RoleTTL  time.Duration
}

// SealingConfig holds verification stamp configuration
type SealingConfig struct {
	VerifyBaseURL string
	CodePrefix    string
}

// WorkflowConfig holds review workflow switches
type WorkflowConfig struct {
	AllowResubmission bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	roleTTL, err := getDuration("ROLE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	presignTTL, err := getDuration("PRESIGN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NodeEnv:    getEnv("NODE_ENV", "development"),
		Port:       getEnv("PORT", "3210"),
		PathPrefix: os.Getenv("PATH_PREFIX"),
		JWTSecret:  jwtSecret,
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "sealflow"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
			DataPath: getEnv("PG_EMBEDDED_DATA", "./db_data"),
		},
		Store: StoreConfig{
			Backend:           getEnv("STORE_BACKEND", "postgres"),
			AWSRegion:         getEnv("AWS_REGION", "ap-south-1"),
			DynamoEndpoint:    os.Getenv("DYNAMODB_ENDPOINT"),
			ApplicationsTable: getEnv("DYNAMODB_APPLICATIONS_TABLE", "sealflow-applications"),
			LogsTable:         getEnv("DYNAMODB_LOGS_TABLE", "sealflow-activity-logs"),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", "local"),
			LocalDir:   getEnv("STORAGE_DIR", "./data/documents"),
			Bucket:     getEnv("S3_BUCKET", "sealflow-documents"),
			Endpoint:   os.Getenv("S3_ENDPOINT"),
			PresignTTL: presignTTL,
		},
		Cache: CacheConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			RoleTTL:  roleTTL,
		},
		Sealing: SealingConfig{
			VerifyBaseURL: getEnv("VERIFY_BASE_URL", "http://localhost:3210/verify"),
			CodePrefix:    getEnv("VERIFICATION_PREFIX", "CRX"),
		},
		Workflow: WorkflowConfig{
			AllowResubmission: getEnv("ALLOW_RESUBMISSION", "false") == "true",
		},
	}

	switch cfg.Store.Backend {
	case "postgres", "dynamodb", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
	switch cfg.Storage.Backend {
	case "local", "s3", "memory":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if !alphanumeric(cfg.Sealing.CodePrefix) {
		return nil, fmt.Errorf("VERIFICATION_PREFIX must be letters and digits only, got %q", cfg.Sealing.CodePrefix)
	}

	return cfg, nil
}

// IsProduction reports whether NODE_ENV is production
func (c *Config) IsProduction() bool {
	return c.NodeEnv == "production"
}

// alphanumeric keeps the prefix a single dash-free part of the code
func alphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s") or plain seconds ("90")
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
