package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Task       TaskConfig       `mapstructure:"task" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// Origins allowed to open WebSocket connections; empty allows any
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TaskConfig controls the dispatcher and its worker pool.
type TaskConfig struct {
	WorkerCount       int           `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize         int           `mapstructure:"queue_size" validate:"required,gt=0"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout" validate:"gt=0"`
	// Store selects the task store backend: "memory" or "postgres"
	Store string `mapstructure:"store" validate:"required,oneof=memory postgres"`
}

// GenerationConfig selects and configures the generator provider.
type GenerationConfig struct {
	// Provider is one of "simulated", "gemini" or "openai"
	Provider   string        `mapstructure:"provider" validate:"required,oneof=simulated gemini openai"`
	StageDelay time.Duration `mapstructure:"stage_delay" validate:"gte=0"`
	WordDelay  time.Duration `mapstructure:"word_delay" validate:"gte=0"`

	GeminiAPIKey     string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiTextModel  string `mapstructure:"gemini_text_model"`
	GeminiImageModel string `mapstructure:"gemini_image_model"`

	OpenAIAPIKey     string `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url" validate:"omitempty,url"`
	OpenAITextModel  string `mapstructure:"openai_text_model"`
	OpenAIImageModel string `mapstructure:"openai_image_model"`
}

// DatabaseConfig contains all database-related configuration settings.
// It is only required when task.store is "postgres".
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// StorageConfig configures the optional S3 result sink. Binary results are
// kept inline when Bucket is empty.
type StorageConfig struct {
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PublicBaseURL   string        `mapstructure:"public_base_url" validate:"omitempty,url"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl" validate:"gte=0"`
}

// MetricsConfig configures the optional InfluxDB lifecycle recorder.
// Recording is disabled when URL is empty.
type MetricsConfig struct {
	URL    string `mapstructure:"url" validate:"omitempty,url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket" validate:"required_with=URL"`
}

// AuthConfig contains authentication settings. API routes are open when
// JWTSecret is empty.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}
