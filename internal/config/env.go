package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// FirebaseConfig locates the Firestore project and its storage bucket.
type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string // overrides project_id from the credentials file
	StorageBucket   string // defaults to <project>.appspot.com
}

// RedisConfig is used when STORE_BACKEND=redis.
type RedisConfig struct {
	URL string
}

// S3Config is used when BLOB_BACKEND=s3.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// StoreConfig selects backends and collection names.
type StoreConfig struct {
	Backend        string // "firestore"|"redis"
	BlobBackend    string // "gcs"|"s3"
	PinsCollection string
	LogCollection  string
	LocalLogFile   string
}

// SweepConfig controls the retention sweep and its schedule.
type SweepConfig struct {
	RetentionDays int
	Schedule      string
	Timeout       time.Duration
	RunOnStart    bool
}

// Config is the top-level configuration.
type Config struct {
	Port     string
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Firebase FirebaseConfig
	Redis    RedisConfig
	S3       S3Config
	Store    StoreConfig
	Sweep    SweepConfig
}

// Retention returns the sweep threshold as a duration.
func (c SweepConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Load reads an optional .env file and then builds the config from the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{Port: getEnv("PORT", "3000")}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pinsweeper.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pinsweeper",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Firebase = FirebaseConfig{
		CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "serviceAccount.json"),
		ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
	}

	cfg.Redis = RedisConfig{URL: getEnv("REDIS_URL", "redis://localhost:6379")}

	cfg.S3 = S3Config{
		Bucket:          getEnv("AWS_S3_BUCKET", ""),
		Region:          getEnv("AWS_REGION", "us-east-1"),
		Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		UsePathStyle:    parseBool(getEnv("AWS_S3_PATH_STYLE", "false")),
	}

	cfg.Store = StoreConfig{
		Backend:        strings.ToLower(getEnv("STORE_BACKEND", "firestore")),
		BlobBackend:    strings.ToLower(getEnv("BLOB_BACKEND", "gcs")),
		PinsCollection: getEnv("PINS_COLLECTION", "pins"),
		LogCollection:  getEnv("LOG_COLLECTION", "deleted_pins_log"),
		LocalLogFile:   getEnv("LOCAL_LOG_FILE", "deleted_pins_log.json"),
	}

	cfg.Sweep = SweepConfig{
		RetentionDays: parseInt(getEnv("RETENTION_DAYS", "30"), 30),
		Schedule:      getEnv("SWEEP_SCHEDULE", "0 1 * * *"),
		Timeout:       parseDuration(getEnv("SWEEP_TIMEOUT", "30m"), 30*time.Minute),
		RunOnStart:    parseBool(getEnv("SWEEP_ON_START", "false")),
	}
	if cfg.Sweep.RetentionDays <= 0 {
		cfg.Sweep.RetentionDays = 30
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
