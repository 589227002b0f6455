// Package config holds the service configuration and its loader.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Upload     UploadConfig     `koanf:"upload"`
	Thresholds ThresholdsConfig `koanf:"thresholds"`
	Detector   DetectorConfig   `koanf:"detector"`
	Redis      RedisConfig      `koanf:"redis"`
	Log        LogConfig        `koanf:"log"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Vision     VisionConfig     `koanf:"vision"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	Mode            string        `koanf:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// UploadConfig bounds accepted uploads
type UploadConfig struct {
	MaxBytes int64 `koanf:"max_bytes" validate:"gt=0"`
}

// ThresholdsConfig holds the byte-size classes used by analysis, fallback and segmentation
type ThresholdsConfig struct {
	SmallBytes    int64 `koanf:"small_bytes" validate:"gt=0"`
	LargeBytes    int64 `koanf:"large_bytes" validate:"gt=0"`
	DetailedBytes int64 `koanf:"detailed_bytes" validate:"gt=0"`
}

// DetectorConfig selects and tunes the live detection provider
type DetectorConfig struct {
	Provider      string        `koanf:"provider" validate:"oneof=none replicate redis ollama llamacpp gemini"`
	URL           string        `koanf:"url" validate:"omitempty,url"`
	Model         string        `koanf:"model"`
	APIKey        string        `koanf:"api_key"`
	Version       string        `koanf:"version"`
	PollInterval  time.Duration `koanf:"poll_interval" validate:"gt=0"`
	MaxAttempts   int           `koanf:"max_attempts" validate:"gt=0"`
	Ensemble      bool          `koanf:"ensemble"`
	TransportSize int           `koanf:"transport_size" validate:"gte=64"`
}

// RedisConfig holds the job queue connection
type RedisConfig struct {
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"gte=0"`
	Queue     string        `koanf:"queue"`
	ResultTTL time.Duration `koanf:"result_ttl" validate:"gt=0"`
}

// LogConfig controls level and optional file rotation
type LogConfig struct {
	Level      string `koanf:"level" validate:"oneof=debug info warn error"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gt=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

// RateLimitConfig is the per-client token bucket
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" validate:"gt=0"`
	Burst int     `koanf:"burst" validate:"gt=0"`
}

// VisionConfig toggles server-side signal extraction
type VisionConfig struct {
	ServerAnalysis bool `koanf:"server_analysis"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3001",
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Upload: UploadConfig{MaxBytes: 20 << 20},
		Thresholds: ThresholdsConfig{
			SmallBytes:    100 * 1024,
			LargeBytes:    500 * 1024,
			DetailedBytes: 1024 * 1024,
		},
		Detector: DetectorConfig{
			Provider:      "none",
			PollInterval:  2 * time.Second,
			MaxAttempts:   30,
			TransportSize: 1536,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Queue:     "autorig:jobs",
			ResultTTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 10},
	}
}

var validate = validator.New()

// Validate checks field constraints and the rules that span fields
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidConfig, f.Namespace(), f.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	t := c.Thresholds
	if t.SmallBytes >= t.LargeBytes || t.LargeBytes >= t.DetailedBytes {
		return fmt.Errorf("%w: thresholds must satisfy small < large < detailed", ErrInvalidConfig)
	}

	d := c.Detector
	switch d.Provider {
	case "replicate":
		if d.APIKey == "" || d.Version == "" {
			return fmt.Errorf("%w: replicate needs detector.api_key and detector.version", ErrInvalidConfig)
		}
	case "gemini":
		if d.APIKey == "" {
			return fmt.Errorf("%w: gemini needs detector.api_key", ErrInvalidConfig)
		}
	case "ollama":
		if d.URL == "" || d.Model == "" {
			return fmt.Errorf("%w: ollama needs detector.url and detector.model", ErrInvalidConfig)
		}
	case "redis":
		if c.Redis.Addr == "" || c.Redis.Queue == "" {
			return fmt.Errorf("%w: redis provider needs redis.addr and redis.queue", ErrInvalidConfig)
		}
	}
	if d.Ensemble && d.Provider == "none" {
		return fmt.Errorf("%w: detector.ensemble needs a provider", ErrInvalidConfig)
	}
	return nil
}

// applyKeyFallbacks fills detector.api_key from the provider's conventional variable
func (c *Config) applyKeyFallbacks() {
	if c.Detector.APIKey != "" {
		return
	}
	switch c.Detector.Provider {
	case "replicate":
		c.Detector.APIKey = os.Getenv("REPLICATE_API_TOKEN")
	case "gemini":
		c.Detector.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}
