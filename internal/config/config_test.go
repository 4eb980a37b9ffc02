package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written on first run")
	assert.Equal(t, 10000, cfg.Upload.MinDurationMs)
	assert.Equal(t, 200, cfg.Upload.TickIntervalMs)
	assert.Equal(t, 90.0, cfg.Upload.ProgressCap)
	assert.Equal(t, 500, cfg.Upload.CompleteDelayMs)
	assert.Equal(t, []string{".pdf", ".doc", ".docx", ".txt", ".md"}, cfg.GetAllowedFileTypes())
}

func TestLoadConfig_FileValuesOverrideDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
webhooks:
  questionURL: http://example.test/ask
upload:
  minDurationMs: 250
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "http://example.test/ask", cfg.Webhooks.QuestionURL)
	assert.Equal(t, 250, cfg.Upload.MinDurationMs)
	// untouched keys keep defaults
	assert.Equal(t, 200, cfg.Upload.TickIntervalMs)
	assert.NotEmpty(t, cfg.Webhooks.FileURL)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("KC_WEBHOOK_TEXT_URL", "http://env.test/text")
	t.Setenv("KC_UPLOAD_MIN_DURATION_MS", "1234")
	t.Setenv("KC_ADVANCED_ENABLE_DELIVERY_LOG", "false")
	t.Setenv("PORT", "7001")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.test/text", cfg.Webhooks.TextURL)
	assert.Equal(t, 1234, cfg.Upload.MinDurationMs)
	assert.False(t, cfg.Advanced.EnableDeliveryLog)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:7001", cfg.GetServerAddr())
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EmptyBodyLimitFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  bodyLimit: \"\"\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "50M", cfg.Server.BodyLimit)
}

func TestLoadConfig_InvalidBodyLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("KC_SERVER_BODY_LIMIT", "fifty")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "bodyLimit")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *AppConfig) {}},
		{name: "missing question url", mutate: func(c *AppConfig) { c.Webhooks.QuestionURL = "" }, wantErr: true},
		{name: "zero tick", mutate: func(c *AppConfig) { c.Upload.TickIntervalMs = 0 }, wantErr: true},
		{name: "cap at 100", mutate: func(c *AppConfig) { c.Upload.ProgressCap = 100 }, wantErr: true},
		{name: "zero cleanup interval", mutate: func(c *AppConfig) { c.Processing.CleanupIntervalMinutes = 0 }, wantErr: true},
		{name: "body limit in KB", mutate: func(c *AppConfig) { c.Server.BodyLimit = "512KB" }},
		{name: "empty body limit", mutate: func(c *AppConfig) { c.Server.BodyLimit = "" }, wantErr: true},
		{name: "unparseable body limit", mutate: func(c *AppConfig) { c.Server.BodyLimit = "lots" }, wantErr: true},
		{name: "zero body limit", mutate: func(c *AppConfig) { c.Server.BodyLimit = "0" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.AllowOrigins = " http://a.test , ,http://b.test"
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetAllowedOrigins())

	cfg.Server.AllowOrigins = ""
	assert.Equal(t, []string{"*"}, cfg.GetAllowedOrigins())

	assert.Equal(t, 60*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval())
	assert.Equal(t, time.Duration(0), cfg.WebhookTimeout())
}
