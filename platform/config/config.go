// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// QueueConfig provides settings for the inbound message queue.
type QueueConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetQueueName() string
	GetQueueConcurrency() int
}

// CacheConfig provides settings for the Redis snapshot cache.
type CacheConfig interface {
	GetRedisURL() string
	GetSnapshotCacheTTL() time.Duration
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketReportImages() string
	GetImageURLTTL() time.Duration
	IsMinIOEnabled() bool
}

// GeminiConfig provides settings for the Gemini AI adapters.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetVisionModel() string
	GetTextModel() string
	GetAICallsPerMinute() int
	IsGeminiEnabled() bool
}

// QdrantConfig provides settings for Qdrant vector database.
type QdrantConfig interface {
	GetQdrantURL() string
	GetQdrantAPIKey() string
	GetQdrantCollection() string
	IsQdrantEnabled() bool
}

// EmbeddingConfig provides settings for the embedding API service.
type EmbeddingConfig interface {
	GetEmbeddingAPIURL() string
	GetEmbeddingAPIKey() string
	IsEmbeddingEnabled() bool
}

// WhatsAppConfig provides settings for the outbound WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// EngineConfig provides settings for the conversation engine.
type EngineConfig interface {
	GetConversationTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	DatabaseURL        string
	RedisURL           string
	RedisTLSInsecure   bool
	QueueName          string
	QueueConcurrency   int
	SnapshotCacheTTL   time.Duration
	ConversationTTL    time.Duration
	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOUseSSL        bool
	MinIOMaxFileSize   int64
	BucketReportImages string
	ImageURLTTL        time.Duration
	GeminiAPIKey       string
	VisionModel        string
	TextModel          string
	AICallsPerMinute   int
	QdrantURL          string
	QdrantAPIKey       string
	QdrantCollection   string
	EmbeddingAPIURL    string
	EmbeddingAPIKey    string
	WhatsAppURL        string
	WhatsAppKey        string
	WhatsAppDeviceID   string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// QueueConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetQueueName() string     { return c.QueueName }
func (c *Config) GetQueueConcurrency() int { return c.QueueConcurrency }

// CacheConfig implementation
func (c *Config) GetSnapshotCacheTTL() time.Duration { return c.SnapshotCacheTTL }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64        { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketReportImages() string { return c.BucketReportImages }
func (c *Config) GetImageURLTTL() time.Duration     { return c.ImageURLTTL }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// GeminiConfig implementation
func (c *Config) GetGeminiAPIKey() string  { return c.GeminiAPIKey }
func (c *Config) GetVisionModel() string   { return c.VisionModel }
func (c *Config) GetTextModel() string     { return c.TextModel }
func (c *Config) GetAICallsPerMinute() int { return c.AICallsPerMinute }
func (c *Config) IsGeminiEnabled() bool    { return c.GeminiAPIKey != "" }

// QdrantConfig implementation
func (c *Config) GetQdrantURL() string        { return c.QdrantURL }
func (c *Config) GetQdrantAPIKey() string     { return c.QdrantAPIKey }
func (c *Config) GetQdrantCollection() string { return c.QdrantCollection }
func (c *Config) IsQdrantEnabled() bool {
	return c.QdrantURL != "" && c.QdrantCollection != ""
}

// EmbeddingConfig implementation
func (c *Config) GetEmbeddingAPIURL() string { return c.EmbeddingAPIURL }
func (c *Config) GetEmbeddingAPIKey() string { return c.EmbeddingAPIKey }
func (c *Config) IsEmbeddingEnabled() bool   { return c.EmbeddingAPIURL != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// EngineConfig implementation
func (c *Config) GetConversationTTL() time.Duration { return c.ConversationTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		QueueName:          getEnv("QUEUE_NAME", "reports"),
		QueueConcurrency:   mustInt(getEnv("QUEUE_CONCURRENCY", "10")),
		SnapshotCacheTTL:   mustDuration(getEnv("SNAPSHOT_CACHE_TTL", "5m")),
		ConversationTTL:    mustDuration(getEnv("CONVERSATION_TTL", "24h")),
		MinIOEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:        strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:   mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "10485760")),
		BucketReportImages: getEnv("MINIO_BUCKET_REPORT_IMAGES", "report-images"),
		ImageURLTTL:        mustDuration(getEnv("IMAGE_URL_TTL", "168h")),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		VisionModel:        getEnv("GEMINI_VISION_MODEL", "gemini-2.0-flash"),
		TextModel:          getEnv("GEMINI_TEXT_MODEL", "gemini-2.0-flash-lite"),
		AICallsPerMinute:   mustInt(getEnv("AI_CALLS_PER_MINUTE", "60")),
		QdrantURL:          getEnv("QDRANT_URL", ""),
		QdrantAPIKey:       getEnv("QDRANT_API_KEY", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "safety-protocols"),
		EmbeddingAPIURL:    getEnv("EMBEDDING_API_URL", ""),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		WhatsAppURL:        getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:        getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:   getEnv("WHATSAPP_DEVICE_ID", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.ConversationTTL <= 0 {
		return nil, fmt.Errorf("CONVERSATION_TTL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}
