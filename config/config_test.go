package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, BackendMemory, cfg.HistoryBackend)
	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.False(t, cfg.LLMEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("TOP_K", "3")
	t.Setenv("GCP_PROJECT", "findlanq")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, BackendSQLite, cfg.HistoryBackend)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.TopK)
	assert.True(t, cfg.LLMEnabled())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\nchunk_max_chars: 500\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 500, cfg.ChunkMaxChars)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	_, err := Load("")
	assert.ErrorContains(t, err, "POSTGRES_URI")

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("HISTORY_BACKEND", "mongo")
	_, err = Load("")
	assert.ErrorContains(t, err, "MONGO_URI")

	t.Setenv("HISTORY_BACKEND", "cassandra")
	_, err = Load("")
	assert.ErrorContains(t, err, "unknown HISTORY_BACKEND")
}
