package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the configuration of the stream server
type Config struct {
	// Server configuration
	Port            string
	ShutdownTimeout time.Duration

	// Stream configuration
	DefaultCount int
	ChunkPoints  int

	// Middleware
	AllowedOrigins     string
	GzipEnabled        bool
	MetricsEnabled     bool
	RateLimitPerMinute int

	// Stream run log, disabled while DBHost is empty
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Logging
	LogLevel  string
	LogFormat string
}

// ClientConfig holds the configuration of the stream client and its viewer
type ClientConfig struct {
	ServerURL     string
	Count         int
	FallbackCount int
	ChunkPoints   int
	DecodeQueue   int

	CanvasWidth  int
	CanvasHeight int
	Output       string

	// Viewer is started when ViewerPort is set
	ViewerPort string

	LogLevel  string
	LogFormat string
}

// Load loads the server configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "3000"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		DefaultCount: getIntEnv("DEFAULT_COUNT", 1000),
		ChunkPoints:  getIntEnv("CHUNK_POINTS", 100000),

		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		GzipEnabled:        getBoolEnv("GZIP_ENABLED", true),
		MetricsEnabled:     getBoolEnv("METRICS_ENABLED", true),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 0),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "pointstream"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// LoadClient loads the client configuration from environment variables
func LoadClient() *ClientConfig {
	return &ClientConfig{
		ServerURL:     getEnv("POINTSTREAM_SERVER", "http://localhost:3000"),
		Count:         getIntEnv("COUNT", 10000),
		FallbackCount: getIntEnv("FALLBACK_COUNT", 1000000),
		ChunkPoints:   getIntEnv("CHUNK_POINTS", 100000),
		DecodeQueue:   getIntEnv("DECODE_QUEUE", 16),

		CanvasWidth:  getIntEnv("CANVAS_WIDTH", 800),
		CanvasHeight: getIntEnv("CANVAS_HEIGHT", 600),
		Output:       getEnv("OUTPUT", "points.png"),

		ViewerPort: getEnv("VIEWER_PORT", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "cli"),
	}
}

// DBEnabled reports whether stream runs should be recorded
func (c *Config) DBEnabled() bool {
	return c.DBHost != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
