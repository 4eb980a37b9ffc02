// Package config provides YAML-based configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server" envPrefix:"SERVER_"`

	// Outbound webhook endpoints
	Webhooks WebhookConfig `yaml:"webhooks" envPrefix:"WEBHOOK_"`

	// Simulated upload timing
	Upload UploadConfig `yaml:"upload" envPrefix:"UPLOAD_"`

	// Session lifecycle
	Processing ProcessingConfig `yaml:"processing" envPrefix:"PROCESSING_"`

	// Security configuration
	Security SecurityConfig `yaml:"security" envPrefix:"SECURITY_"`

	// Advanced options
	Advanced AdvancedConfig `yaml:"advanced" envPrefix:"ADVANCED_"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port               int     `yaml:"port" env:"PORT"`
	BindAddress        string  `yaml:"bindAddress" env:"BIND_ADDRESS"`
	EnableCORS         bool    `yaml:"enableCORS" env:"ENABLE_CORS"`
	AllowOrigins       string  `yaml:"allowOrigins" env:"ALLOW_ORIGINS"`
	ReadTimeout        int     `yaml:"readTimeoutSeconds" env:"READ_TIMEOUT_SECONDS"`
	WriteTimeout       int     `yaml:"writeTimeoutSeconds" env:"WRITE_TIMEOUT_SECONDS"`
	IdleTimeout        int     `yaml:"idleTimeoutSeconds" env:"IDLE_TIMEOUT_SECONDS"`
	BodyLimit          string  `yaml:"bodyLimit" env:"BODY_LIMIT"`
	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond" env:"RATE_LIMIT_PER_SECOND"`
}

// WebhookConfig holds the three fixed ingestion/answering URLs
type WebhookConfig struct {
	FileURL        string `yaml:"fileURL" env:"FILE_URL"`
	TextURL        string `yaml:"textURL" env:"TEXT_URL"`
	QuestionURL    string `yaml:"questionURL" env:"QUESTION_URL"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"TIMEOUT_SECONDS"` // 0 = no client timeout
}

// UploadConfig tunes the simulated progress bar
type UploadConfig struct {
	MinDurationMs   int     `yaml:"minDurationMs" env:"MIN_DURATION_MS"`
	TickIntervalMs  int     `yaml:"tickIntervalMs" env:"TICK_INTERVAL_MS"`
	MaxIncrement    float64 `yaml:"maxIncrement" env:"MAX_INCREMENT"`
	ProgressCap     float64 `yaml:"progressCap" env:"PROGRESS_CAP"`
	CompleteDelayMs int     `yaml:"completeDelayMs" env:"COMPLETE_DELAY_MS"`
}

// ProcessingConfig contains session lifecycle settings
type ProcessingConfig struct {
	MaxSessions            int  `yaml:"maxSessions" env:"MAX_SESSIONS"`
	SessionTimeoutMinutes  int  `yaml:"sessionTimeoutMinutes" env:"SESSION_TIMEOUT_MINUTES"`
	CleanupIntervalMinutes int  `yaml:"cleanupIntervalMinutes" env:"CLEANUP_INTERVAL_MINUTES"`
	EnableCompression      bool `yaml:"enableCompression" env:"ENABLE_COMPRESSION"`
	CompressionLevel       int  `yaml:"compressionLevel" env:"COMPRESSION_LEVEL"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	AllowSessionDeletion bool   `yaml:"allowSessionDeletion" env:"ALLOW_SESSION_DELETION"`
	AllowedFileTypes     string `yaml:"allowedFileTypes" env:"ALLOWED_FILE_TYPES"` // picker hint only
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	EnableRequestLogging    bool `yaml:"enableRequestLogging" env:"ENABLE_REQUEST_LOGGING"`
	EnableDeliveryLog       bool `yaml:"enableDeliveryLog" env:"ENABLE_DELIVERY_LOG"`
	DuckDBThreads           int  `yaml:"duckdbThreads" env:"DUCKDB_THREADS"`
	WebSocketMaxMessageSize int  `yaml:"webSocketMaxMessageSizeKB" env:"WEBSOCKET_MAX_MESSAGE_SIZE_KB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:               8090,
			BindAddress:        "0.0.0.0",
			EnableCORS:         true,
			AllowOrigins:       "*",
			ReadTimeout:        30,
			WriteTimeout:       0, // SSE and websocket streams stay open
			IdleTimeout:        120,
			BodyLimit:          "50M",
			RateLimitPerSecond: 20,
		},
		Webhooks: WebhookConfig{
			FileURL:     "https://yogesh322007.app.n8n.cloud/webhook/1b1bb27f-d4b9-45e4-9be6-77419beb6b12",
			TextURL:     "https://yogesh322007.app.n8n.cloud/webhook/d5680e45-22cc-4fa8-8bab-518679fe75d6",
			QuestionURL: "https://yogesh322007.app.n8n.cloud/webhook/1aa67438-d3d3-4980-9b2b-72be14b7c602",
		},
		Upload: UploadConfig{
			MinDurationMs:   10000,
			TickIntervalMs:  200,
			MaxIncrement:    15,
			ProgressCap:     90,
			CompleteDelayMs: 500,
		},
		Processing: ProcessingConfig{
			MaxSessions:            100,
			SessionTimeoutMinutes:  60,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Security: SecurityConfig{
			AllowSessionDeletion: true,
			AllowedFileTypes:     ".pdf,.doc,.docx,.txt,.md",
		},
		Advanced: AdvancedConfig{
			EnableRequestLogging:    true,
			EnableDeliveryLog:       true,
			DuckDBThreads:           2,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// A missing file is created with defaults. Environment variables win over file values.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	// An empty limit would make the body limit middleware panic
	if strings.TrimSpace(config.Server.BodyLimit) == "" {
		config.Server.BodyLimit = DefaultConfig().Server.BodyLimit
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte("# Knowledge Chat configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides lets KC_* environment variables override config values
func (c *AppConfig) applyEnvironmentOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: "KC_"}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// PORT is honoured for container platforms that inject it
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			c.Server.Port = p
		}
	}
	return nil
}

// Validate checks values that would make the service unusable
func (c *AppConfig) Validate() error {
	if c.Webhooks.FileURL == "" || c.Webhooks.TextURL == "" || c.Webhooks.QuestionURL == "" {
		return fmt.Errorf("invalid config: all three webhook URLs are required")
	}
	if c.Upload.TickIntervalMs <= 0 {
		return fmt.Errorf("invalid config: upload.tickIntervalMs must be positive")
	}
	if c.Upload.ProgressCap <= 0 || c.Upload.ProgressCap >= 100 {
		return fmt.Errorf("invalid config: upload.progressCap must be between 0 and 100")
	}
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("invalid config: processing.cleanupIntervalMinutes must be positive")
	}
	if n, err := bytes.Parse(c.Server.BodyLimit); err != nil || n <= 0 {
		return fmt.Errorf("invalid config: server.bodyLimit %q is not a size like 50M", c.Server.BodyLimit)
	}
	return nil
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetAllowedOrigins splits the comma separated origin list
func (c *AppConfig) GetAllowedOrigins() []string {
	origins := strings.Split(c.Server.AllowOrigins, ",")
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

// GetAllowedFileTypes returns the picker accept list
func (c *AppConfig) GetAllowedFileTypes() []string {
	var types []string
	for _, t := range strings.Split(c.Security.AllowedFileTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// SessionTimeout returns the idle time after which sessions are dropped
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often the session sweep runs
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// WebhookTimeout returns the outbound client timeout (zero means none)
func (c *AppConfig) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhooks.TimeoutSeconds) * time.Second
}
