package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 5, cfg.Knowledge.TopK)
	assert.Equal(t, "http://localhost:8000", cfg.Knowledge.Chroma.URL())
	assert.Equal(t, 2*time.Hour, cfg.Chat.SessionTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ReadsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "coopchat.yaml", `
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 45s
knowledge:
  backend: chroma
  top_k: 3
  chroma:
    host: chroma.internal
    port: 9000
chat:
  session_ttl: 30m
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "chroma", cfg.Knowledge.Backend)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, "http://chroma.internal:9000", cfg.Knowledge.Chroma.URL())
	assert.Equal(t, 30*time.Minute, cfg.Chat.SessionTTL)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep their defaults
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "coopchat.yaml", "llm:\n  model: from-file\n")
	t.Setenv("COOPCHAT_LLM_MODEL", "from-env")
	t.Setenv("COOPCHAT_KNOWLEDGE_CHUNK_SIZE", "500")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.Knowledge.ChunkSize)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "coopchat.yaml", "knowledge:\n  backend: lance\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge.backend")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"zero chunk size", func(c *Config) { c.Knowledge.ChunkSize = 0 }, "knowledge.chunk_size"},
		{"overlap too large", func(c *Config) { c.Knowledge.ChunkOverlap = c.Knowledge.ChunkSize }, "knowledge.chunk_overlap"},
		{"negative top k", func(c *Config) { c.Knowledge.TopK = -1 }, "knowledge.top_k"},
		{"zero history", func(c *Config) { c.Chat.HistoryTurns = 0 }, "chat.history_turns"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDomainDir(t *testing.T) {
	k := Default().Knowledge
	assert.Equal(t, k.BillingDir, k.DomainDir("billing"))
	assert.Equal(t, k.EmergencyDir, k.DomainDir("emergency"))
	assert.Empty(t, k.DomainDir("other"))
}
