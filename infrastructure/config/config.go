package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	domainconfig "flowboard/domain/config"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSupabase = "supabase"
)

// Event backends
const (
	EventsLocal       = "local"
	EventsEventBridge = "eventbridge"
)

// Auth modes
const (
	AuthNone     = "none"
	AuthJWT      = "jwt"
	AuthSupabase = "supabase"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// Storage
	StoreBackend  string `yaml:"store_backend"`
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	DatabaseURL   string `yaml:"database_url"`
	SupabaseURL   string `yaml:"supabase_url"`
	SupabaseKey   string `yaml:"-"`
	SupabaseTable string `yaml:"supabase_table"`

	// Store decorators
	RedisURL       string        `yaml:"redis_url"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	EnableBreaker  bool          `yaml:"enable_breaker"`
	EnableMetrics  bool          `yaml:"enable_metrics"`
	MetricsPrefix  string        `yaml:"metrics_namespace"`
	AutosaveDelay  time.Duration `yaml:"autosave_delay"`
	NoticeCapacity int           `yaml:"notice_capacity"`

	// Board sessions nobody has used for this long are closed
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// Board events stay in process unless forwarded to an EventBridge bus
	EventBackend  string `yaml:"event_backend"`
	EventBusName  string `yaml:"event_bus_name"`
	EnableTracing bool   `yaml:"enable_tracing"`

	// Authentication
	AuthMode  string `yaml:"auth_mode"`
	JWTSecret string `yaml:"-"`
	JWTIssuer string `yaml:"jwt_issuer"`
	DevUserID string `yaml:"dev_user_id"`

	// Rate limits per minute, zero disables
	IPRateLimit   int `yaml:"ip_rate_limit"`
	UserRateLimit int `yaml:"user_rate_limit"`

	// Lambda configuration
	IsLambda bool `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// File the YAML layer was read from, if any
	File string `yaml:"-"`

	Canvas *domainconfig.CanvasConfig `yaml:"-"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		ShutdownTimeout:    15 * time.Second,
		CORSOrigins:        []string{"*"},
		StoreBackend:       StoreMemory,
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "flowboard",
		SupabaseTable:      "boards",
		CacheTTL:           5 * time.Minute,
		MetricsPrefix:      "flowboard",
		EnableMetrics:      true,
		AutosaveDelay:      domainconfig.DefaultCanvasConfig().AutosaveDelay,
		NoticeCapacity:     50,
		SessionIdleTimeout: 15 * time.Minute,
		EventBackend:       EventsLocal,
		AuthMode:           AuthNone,
		JWTIssuer:          "flowboard",
		DevUserID:          "local-user",
		IPRateLimit:        300,
		UserRateLimit:      600,
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named
// by CONFIG_FILE, then environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
		cfg.File = path
	}
	cfg.applyEnv()
	cfg.Canvas = domainconfig.LoadCanvasConfig(cfg.Environment)
	cfg.Canvas.AutosaveDelay = cfg.AutosaveDelay

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseKey)
	c.SupabaseTable = getEnv("SUPABASE_TABLE", c.SupabaseTable)

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.EnableBreaker = getEnvBool("ENABLE_BREAKER", c.EnableBreaker)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.MetricsPrefix = getEnv("METRICS_NAMESPACE", c.MetricsPrefix)
	c.AutosaveDelay = getEnvDuration("AUTOSAVE_DELAY", c.AutosaveDelay)
	c.NoticeCapacity = getEnvInt("NOTICE_CAPACITY", c.NoticeCapacity)
	c.SessionIdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout)
	c.EventBackend = getEnv("EVENT_BACKEND", c.EventBackend)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)

	c.AuthMode = getEnv("AUTH_MODE", c.AuthMode)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.DevUserID = getEnv("DEV_USER_ID", c.DevUserID)
	c.IPRateLimit = getEnvInt("IP_RATE_LIMIT", c.IPRateLimit)
	c.UserRateLimit = getEnvInt("USER_RATE_LIMIT", c.UserRateLimit)

	c.IsLambda = getEnvBool("IS_LAMBDA", os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthMode {
	case AuthNone:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE none is not allowed in production")
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for jwt auth")
		}
	case AuthSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	switch c.EventBackend {
	case EventsLocal:
	case EventsEventBridge:
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for the eventbridge event backend")
		}
	default:
		return fmt.Errorf("unknown EVENT_BACKEND %q", c.EventBackend)
	}

	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("AUTOSAVE_DELAY must be positive")
	}
	return nil
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

// getEnvDuration parses values such as "750ms" or "2s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
