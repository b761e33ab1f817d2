package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Provider)
	assert.EqualValues(t, 300, cfg.Extraction.DPI)
	assert.Equal(t, 1, cfg.Extraction.PageRetries)
	assert.Equal(t, "local", cfg.Extraction.Dispatch)
	assert.Equal(t, "llama3-70b-8192", cfg.LLM.Model)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "https://api.groq.com/openai/v1/chat/completions", cfg.LLM.URL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("EXTRACTION_WORKERS", "2")
	t.Setenv("APP_TIMEZONE", "Asia/Kolkata")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Provider)
	assert.Equal(t, 2, cfg.Extraction.Workers)

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"STORAGE_PROVIDER":    "ftp",
		"EXTRACTION_DISPATCH": "kafka",
		"EXTRACTION_WORKERS":  "0",
		"APP_TIMEZONE":        "Mars/Olympus",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "evalmate", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/evalmate?sslmode=disable", cfg.DSN())
}
