package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Document store
	StoreBackend             string
	DatabaseURL              string
	DynamoUsersTable         string
	DynamoConversationsTable string
	DynamoAnalysesTable      string
	RetentionCap             int

	// Redis (OSINT result cache)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ScreenshotBucket    string

	// Model providers
	GeminiAPIKey   string
	GeminiModel    string
	BedrockModelID string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	VisionTimeout  time.Duration

	// OSINT enrichment
	OSINTToolDir      string
	OSINTToolCommand  []string
	OSINTScanTimeout  time.Duration
	OSINTFetchTimeout time.Duration
	OSINTCacheTTL     time.Duration

	// HTTP surface
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitPeriod    time.Duration
	MaxUploadBytes     int64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:             strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DynamoUsersTable:         getEnv("DYNAMO_USERS_TABLE", "sherlock_users"),
		DynamoConversationsTable: getEnv("DYNAMO_CONVERSATIONS_TABLE", "sherlock_conversations"),
		DynamoAnalysesTable:      getEnv("DYNAMO_ANALYSES_TABLE", "sherlock_analyses"),
		RetentionCap:             getEnvAsInt("RETENTION_CAP", 50),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ScreenshotBucket:    getEnv("SCREENSHOT_BUCKET", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		VisionTimeout:  getEnvAsDuration("VISION_TIMEOUT", 90*time.Second),

		OSINTToolDir:      getEnv("OSINT_TOOL_DIR", "tookie-osint"),
		OSINTToolCommand:  getEnvAsList("OSINT_TOOL_COMMAND", []string{"python3", "brib.py"}, " "),
		OSINTScanTimeout:  getEnvAsDuration("OSINT_SCAN_TIMEOUT", 3*time.Minute),
		OSINTFetchTimeout: getEnvAsDuration("OSINT_FETCH_TIMEOUT", 5*time.Second),
		OSINTCacheTTL:     getEnvAsDuration("OSINT_CACHE_TTL", 24*time.Hour),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"chrome-extension://*"}, ","),
		RateLimitRequests:  getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitPeriod:    getEnvAsDuration("RATE_LIMIT_PERIOD", time.Minute),
		MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits an environment variable on sep, dropping empty entries.
func getEnvAsList(key string, defaultValue []string, sep string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
