package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("HISTORY_BACKEND", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "bot.db"))
	t.Setenv("EMBEDDING_DIM", "32")
	t.Setenv("GCP_PROJECT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("GCS_BUCKET", "")
	t.Setenv("STT_ENABLED", "false")
	t.Setenv("INGEST_ASYNC", "false")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_IngestListAskDelete(t *testing.T) {
	dir := setupEnv(t)
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "finland.txt"), []byte("Finland is in Northern Europe.\n\nHelsinki is the capital."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "notes.bin"), []byte{0, 1}, 0o644))

	out, err := run(t, "ingest", docs)
	require.NoError(t, err, out)
	assert.Contains(t, out, "finland.txt: ingested (2 chunks)")
	assert.NotContains(t, out, "notes.bin")

	out, err = run(t, "ingest", filepath.Join(docs, "finland.txt"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "skipped")

	out, err = run(t, "files", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "finland.txt")

	out, err = run(t, "ask", "What", "is", "the", "capital?", "--session", "cli-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "session: cli-1")
	assert.Contains(t, out, "finland.txt#")

	out, err = run(t, "sessions", "purge")
	require.NoError(t, err, out)
	assert.Contains(t, out, "purged 0 sessions")

	out, err = run(t, "files", "delete", "finland.txt")
	require.NoError(t, err, out)
	out, err = run(t, "files", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "finland.txt")
}

func TestCLI_IngestMissingPath(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, "ingest", filepath.Join(dir, "nope.txt"))
	assert.Error(t, err)
}
