package common

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/ocr-batch/constants"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Limits LimitsConfig
	Cache  CacheConfig
	OCR    OCRConfig
	Vertex VertexConfig
	Log    LogConfig
}

// ServerConfig holds listener and request lifetime settings
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LimitsConfig holds batch and rate limits
type LimitsConfig struct {
	MaxImages         int
	MaxFileBytes      int64
	PerMinute         int
	PerHour           int
	TrustProxyHeaders bool
}

// CacheConfig holds shared cache settings
type CacheConfig struct {
	Backend             string // memory | sqlite | postgres | firestore
	DSN                 string
	TTL                 time.Duration
	MaxConns            int32
	MinConns            int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	DialTimeout         time.Duration
	StatementTimeout    time.Duration
	FirestoreProject    string
	FirestoreCollection string
}

// OCRConfig holds extraction engine settings
type OCRConfig struct {
	Engine        string // tesseract | gosseract | vertex
	Tesseract     string
	Lang          string
	PSM           int
	TessdataDir   string
	MinConfidence float64
	Workers       int
	Preprocess    bool
	HeicConverter string
	WorkDir       string
}

// VertexConfig holds Vertex AI settings for the vertex engine
type VertexConfig struct {
	Project string
	Region  string
	Model   string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Cache backends.
const (
	CacheMemory    = "memory"
	CacheSQLite    = "sqlite"
	CachePostgres  = "postgres"
	CacheFirestore = "firestore"
)

// OCR engines.
const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
	EngineVertex    = "vertex"
)

// LoadConfig loads configuration from environment variables, reading a .env
// file first when one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:        getEnv("GRPC_ADDR", ""),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 2*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Limits: LimitsConfig{
			MaxImages:         getEnvAsInt("MAX_IMAGES_PER_REQUEST", constants.DefaultMaxImages),
			MaxFileBytes:      getEnvAsInt64("MAX_FILE_SIZE_BYTES", constants.DefaultMaxFileBytes),
			PerMinute:         getEnvAsInt("RATE_LIMIT_PER_MINUTE", constants.DefaultPerMinute),
			PerHour:           getEnvAsInt("RATE_LIMIT_PER_HOUR", constants.DefaultPerHour),
			TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),
		},
		Cache: CacheConfig{
			Backend:             strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			DSN:                 getEnv("CACHE_DSN", "file:ocr-cache.db"),
			TTL:                 getEnvAsDuration("CACHE_TTL", constants.DefaultCacheTTLSeconds*time.Second),
			MaxConns:            getEnvAsInt32("CACHE_MAX_CONNS", 10),
			MinConns:            getEnvAsInt32("CACHE_MIN_CONNS", 1),
			MaxConnLifetime:     getEnvAsDuration("CACHE_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:     getEnvAsDuration("CACHE_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:         getEnvAsDuration("CACHE_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout:    getEnvAsDuration("CACHE_STATEMENT_TIMEOUT", 0),
			FirestoreProject:    getEnv("FIRESTORE_PROJECT", ""),
			FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "ocr_cache"),
		},
		OCR: OCRConfig{
			Engine:        strings.ToLower(getEnv("OCR_ENGINE", EngineTesseract)),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Lang:          getEnv("TESSERACT_LANG", constants.DefaultTesseractLang),
			PSM:           getEnvAsInt("TESSERACT_PSM", constants.DefaultTesseractPSM),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			MinConfidence: getEnvAsFloat64("OCR_MIN_CONFIDENCE", constants.DefaultMinConfidence),
			Workers:       getEnvAsInt("OCR_WORKERS", runtime.NumCPU()),
			Preprocess:    getEnvAsBool("OCR_PREPROCESS", false),
			HeicConverter: getEnv("HEIC_CONVERTER", constants.DefaultHeicConverter),
			WorkDir:       getEnv("WORK_DIR", filepath.Join(os.TempDir(), "ocr-batch")),
		},
		Vertex: VertexConfig{
			Project: getEnv("VERTEX_PROJECT", ""),
			Region:  getEnv("VERTEX_REGION", "us-central1"),
			Model:   getEnv("VERTEX_MODEL", "gemini-1.5-flash"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// bare integers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Limits.MaxImages <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_IMAGES_PER_REQUEST must be positive", ErrInvalidInput)
	}
	if c.Limits.MaxFileBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_SIZE_BYTES must be positive", ErrInvalidInput)
	}
	if c.Limits.PerMinute < 0 || c.Limits.PerHour < 0 {
		return NewAppError("CONFIG_ERROR", "rate limits must not be negative", ErrInvalidInput)
	}
	if c.Cache.TTL <= 0 {
		return NewAppError("CONFIG_ERROR", "CACHE_TTL must be positive", ErrInvalidInput)
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheSQLite, CachePostgres:
		if c.Cache.DSN == "" {
			return NewAppError("CONFIG_ERROR", "CACHE_DSN is required for "+c.Cache.Backend, ErrInvalidInput)
		}
	case CacheFirestore:
		if c.Cache.FirestoreProject == "" {
			return NewAppError("CONFIG_ERROR", "FIRESTORE_PROJECT is required for firestore cache", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown CACHE_BACKEND %q", c.Cache.Backend), ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case EngineTesseract, EngineGosseract:
	case EngineVertex:
		if c.Vertex.Project == "" {
			return NewAppError("CONFIG_ERROR", "VERTEX_PROJECT is required for vertex engine", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR_ENGINE %q", c.OCR.Engine), ErrInvalidInput)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 100 {
		return NewAppError("CONFIG_ERROR", "OCR_MIN_CONFIDENCE must be within 0..100", ErrInvalidInput)
	}
	if c.OCR.WorkDir == "" {
		return NewAppError("CONFIG_ERROR", "WORK_DIR is required", ErrInvalidInput)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
