package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	domainconfig "blueprint-editor/domain/config"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageDynamoDB = "dynamodb"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Blob backends
const (
	BlobLocal = "local"
	BlobS3    = "s3"
)

// Event backends
const (
	EventsNone        = "none"
	EventsEventBridge = "eventbridge"
	EventsNATS        = "nats"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"serverAddress"`
	Environment     string        `yaml:"environment"`
	PublicBaseURL   string        `yaml:"publicBaseUrl"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Storage
	StorageBackend string `yaml:"storageBackend"`
	DatabaseURL    string `yaml:"databaseUrl"`
	AutoMigrate    bool   `yaml:"autoMigrate"`

	// AWS configuration
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"dynamodbTable"`
	IndexName     string `yaml:"indexName"`
	EventBusName  string `yaml:"eventBusName"`
	JournalEvents bool   `yaml:"journalEvents"`

	// Business metrics are shipped to CloudWatch when a namespace is set
	CloudWatchNamespace string `yaml:"cloudwatchNamespace"`

	// Blob storage
	BlobBackend string `yaml:"blobBackend"`
	BlobDir     string `yaml:"blobDir"`
	S3Bucket    string `yaml:"s3Bucket"`
	S3Prefix    string `yaml:"s3Prefix"`

	// Messaging
	EventBackend string `yaml:"eventBackend"`
	NATSURL      string `yaml:"natsUrl"`
	NATSSubject  string `yaml:"natsSubject"`

	// Lambda configuration
	IsLambda           bool   `yaml:"-"`
	LambdaFunctionName string `yaml:"-"`

	// Editor limits
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
	CacheTTL       time.Duration `yaml:"cacheTtl"`
	ListCacheTTL   time.Duration `yaml:"listCacheTtl"`

	// Uploads and session opens allowed per client per minute; 0 disables
	RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`
	RateLimitTable     string `yaml:"rateLimitTable"`

	// Logging
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`

	// Overlay file, watched for log level changes
	ConfigFile string `yaml:"-"`

	// Feature flags
	EnableMetrics bool `yaml:"enableMetrics"`
	EnableTracing bool `yaml:"enableTracing"`
	EnableCORS    bool `yaml:"enableCORS"`
	EnableGzip    bool `yaml:"enableGzip"`
}

// LoadConfig loads configuration from environment variables and applies
// the optional YAML overlay named by CONFIG_FILE
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageMemory),
		DatabaseURL:    getEnv("DATABASE_URL", "file:blueprints.db"),
		AutoMigrate:    getEnvBool("AUTO_MIGRATE", true),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "blueprint-diagrams")),
		IndexName:     getEnv("INDEX_NAME", "GSI1"),
		EventBusName:  getEnv("EVENT_BUS_NAME", "blueprint-events"),
		JournalEvents: getEnvBool("JOURNAL_EVENTS", false),

		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", ""),

		BlobBackend: getEnv("BLOB_BACKEND", BlobLocal),
		BlobDir:     getEnv("BLOB_DIR", "./data/blobs"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Prefix:    getEnv("S3_PREFIX", "blueprints/"),

		EventBackend: getEnv("EVENT_BACKEND", EventsNone),
		NATSURL:      getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:  getEnv("NATS_SUBJECT", "blueprint.events"),

		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 4<<20)),
		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 30*time.Minute),
		CacheTTL:       getEnvDuration("CACHE_TTL", 5*time.Minute),
		ListCacheTTL:   getEnvDuration("LIST_CACHE_TTL", 30*time.Second),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitTable:     getEnv("RATE_LIMIT_TABLE", ""),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		ConfigFile: getEnv("CONFIG_FILE", ""),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		EnableGzip:    getEnvBool("ENABLE_GZIP", true),
	}

	if cfg.LambdaFunctionName != "" {
		cfg.IsLambda = true
	}
	if cfg.IsLambda && cfg.CloudWatchNamespace == "" {
		cfg.CloudWatchNamespace = "BlueprintEditor/" + cfg.Environment
	}

	if cfg.ConfigFile != "" {
		if err := cfg.ApplyOverlayFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// ApplyOverlayFile reads a YAML file and applies its non-zero fields
func (c *Config) ApplyOverlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config overlay %s: %w", path, err)
	}
	return c.ApplyOverlay(data)
}

// ApplyOverlay decodes YAML over the current values. Keys missing from the
// document keep their current value.
func (c *Config) ApplyOverlay(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config overlay: %w", err)
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageDynamoDB, StoragePostgres, StorageSQLite:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.BlobBackend {
	case BlobLocal, BlobS3:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	switch c.EventBackend {
	case EventsNone, EventsEventBridge, EventsNATS:
	default:
		return fmt.Errorf("unknown EVENT_BACKEND %q", c.EventBackend)
	}

	if c.BlobBackend == BlobS3 && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for the s3 blob backend")
	}
	if c.StorageBackend == StoragePostgres && !strings.HasPrefix(c.DatabaseURL, "postgres") {
		return fmt.Errorf("DATABASE_URL must be a postgres url for the postgres backend")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if c.Environment == "production" {
		if c.StorageBackend == StorageMemory {
			return fmt.Errorf("STORAGE_BACKEND memory is not allowed in production")
		}
		if c.StorageBackend == StorageDynamoDB && c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EventBackend == EventsEventBridge && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// Domain returns the editor limits as a domain config
func (c *Config) Domain() *domainconfig.DomainConfig {
	dc := domainconfig.DefaultDomainConfig()
	dc.MaxUploadBytes = c.MaxUploadBytes
	if c.SessionTimeout > 0 {
		dc.SessionTimeout = c.SessionTimeout
	}
	if c.CacheTTL > 0 {
		dc.DiagramCacheTTL = c.CacheTTL
	}
	if c.ListCacheTTL > 0 {
		dc.ListCacheTTL = c.ListCacheTTL
	}
	// Each Lambda environment holds its own cache and only sees its own
	// invalidations
	if c.IsLambda {
		dc.DiagramCacheTTL = 0
		dc.ListCacheTTL = 0
	}
	return dc
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
