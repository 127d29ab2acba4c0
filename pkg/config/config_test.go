package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "documentation-search-agent", cfg.Backend.AssistantName)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Backend.BaseURL)
	assert.True(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Cache.StoreFailures)
	assert.Empty(t, cfg.Backend.VectorStoreID, "missing vector store is a normal runtime condition")
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_SEARCHDOCS_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: ":9090"
db_path: ""
log_level: debug
backend:
  api_key: ${TEST_SEARCHDOCS_KEY}
  vector_store_id: vs_abc
cache:
  enabled: true
  store_failures: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sk-from-env", cfg.Backend.APIKey)
	assert.Equal(t, "vs_abc", cfg.Backend.VectorStoreID)
	assert.False(t, cfg.Cache.StoreFailures)

	// Unset fields keep their defaults.
	assert.Equal(t, "documentation-search-agent", cfg.Backend.AssistantName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("VECTOR_STORE_ID", "vs_env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "sk-env", cfg.Backend.APIKey)
	assert.Equal(t, "vs_env", cfg.Backend.VectorStoreID)
}
