package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "statcube_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, StorageFilesystem, cfg.Storage.Backend)
	assert.Equal(t, []string{"en-gb", "cy-gb"}, cfg.Languages)
	assert.Equal(t, 30*time.Second, cfg.Storage.CallTimeout)
	assert.Equal(t, "@every 1h", cfg.JanitorSchedule)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LANGUAGES", "en-GB")
	t.Setenv("STORAGE_CALL_TIMEOUT", "5s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, []string{"en-gb"}, cfg.Languages)
	assert.Equal(t, 5*time.Second, cfg.Storage.CallTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestStorageBackendValidation(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_KEY_ID")

	t.Setenv("S3_KEY_ID", "key")
	t.Setenv("S3_SECRET", "secret")
	t.Setenv("S3_REGION", "eu-west-2")
	t.Setenv("S3_BUCKET", "uploads")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, StorageS3, cfg.Storage.Backend)
}

func TestProductionRejectsCORSWildcard(t *testing.T) {
	t.Setenv("ENV", "production")
	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://publish.example.org")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
