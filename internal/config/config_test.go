package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.ChatMaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.SynthesisTemperature, 1e-9)
	assert.Contains(t, cfg.CORS.AllowedOrigins, "http://localhost:5173")
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoadConfigFileAndLegacyEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9100
outbox:
  batch_size: 7
llm:
  timeout: 45s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("DATABASE_URL", "postgresql://amani:secret@db:5432/amani_clinic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "postgres://amani:secret@db:5432/amani_clinic", cfg.Database.DSN())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{URL: "postgresql+psycopg2://u:p@localhost:5432/amani_clinic"}
	assert.Equal(t, "postgres://u:p@localhost:5432/amani_clinic?sslmode=disable", cfg.DSN())

	cfg = DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=require", cfg.DSN())
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 8000},
		Outbox: OutboxConfig{BatchSize: 1, PollInterval: time.Second, RetryAttempts: 1, RetryDelay: time.Second},
	}
	require.NoError(t, cfg.Validate())

	cfg.Auth.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Auth.Secret = "s3cret"
	cfg.LLM.Required = true
	assert.Error(t, cfg.Validate())
}
