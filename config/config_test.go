package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RFP_SERVER_ADDR", "DATABASE_URL", "OLLAMA_BASE_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	clearEnvOverrides(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 4000, cfg.Processing.ChunkSize)
	assert.Equal(t, 200, cfg.Processing.ChunkOverlap)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Empty(t, cfg.Agents.Passes)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9999"
processing:
  chunk_size: 2000
agents:
  passes: [introduction, functional_requirements]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	clearEnvOverrides(t)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 2000, cfg.Processing.ChunkSize)
	assert.Equal(t, []string{"introduction", "functional_requirements"}, cfg.Agents.Passes)

	// untouched keys keep defaults
	assert.Equal(t, 200, cfg.Processing.ChunkOverlap)
	assert.Equal(t, "llama3.2", cfg.Ollama.ChatModel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0644))

	t.Setenv("RFP_SERVER_ADDR", ":7777")
	t.Setenv("DATABASE_URL", "postgres://db/rfp")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "postgres://db/rfp", cfg.Database.ConnectionString)
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.BaseURL)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	clearEnvOverrides(t)

	cfg := Default()
	cfg.Server.Addr = ":8080"
	cfg.Agents.Passes = []string{"introduction"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
