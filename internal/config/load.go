package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. OMNIMEDIA_SERVER_PORT.
const EnvPrefix = "OMNIMEDIA"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// A .env file in the working directory is loaded first if present.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and cross-field rules that tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Task.Store == "postgres" && cfg.Database.URL == "" {
		return errors.New("config validation failed: database.url is required when task.store is postgres")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.generation_timeout", "5m")
	v.SetDefault("task.store", "memory")

	v.SetDefault("generation.provider", "simulated")
	v.SetDefault("generation.stage_delay", "500ms")
	v.SetDefault("generation.word_delay", "100ms")
	v.SetDefault("generation.gemini_text_model", "gemini-2.0-flash")
	v.SetDefault("generation.gemini_image_model", "imagen-3.0-generate-002")
	v.SetDefault("generation.openai_text_model", "gpt-4o-mini")
	v.SetDefault("generation.openai_image_model", "dall-e-3")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presign_ttl", "1h")

	v.SetDefault("auth.token_lifetime", "24h")
}

// bindEnvs registers keys without defaults so AutomaticEnv picks them up
// during Unmarshal.
func bindEnvs(v *viper.Viper) {
	keys := []string{
		"server.allowed_origins",
		"generation.gemini_api_key",
		"generation.openai_api_key",
		"generation.openai_base_url",
		"database.url",
		"storage.bucket",
		"storage.endpoint",
		"storage.access_key_id",
		"storage.secret_access_key",
		"storage.public_base_url",
		"metrics.url",
		"metrics.token",
		"metrics.org",
		"metrics.bucket",
		"auth.jwt_secret",
	}
	for _, key := range keys {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key)
	}
}
