package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Retrieval.SearchLimit)
	assert.Equal(t, "chromem", cfg.VectorDB.Type)
	assert.Equal(t, DefaultQueryPrompt, cfg.Prompts.Query)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"llm": {"model": "llama3", "provider": "ollama", "timeout": "45s"},
		"pages": {"front_matter_offset": 6, "output_dir": "/tmp/ctx"},
		"retrieval": {"hybrid": true}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout.Std())
	assert.Equal(t, 6, cfg.Pages.FrontMatterOffset)
	assert.True(t, cfg.Retrieval.Hybrid)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[vectordb]
type = "memory"
collection = "manuals"

[chunking]
size = 100
overlap = 10
encoding = "cl100k_base"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.VectorDB.Type)
	assert.Equal(t, "manuals", cfg.VectorDB.Collection)
	assert.Equal(t, 100, cfg.Chunking.Size)
	assert.Equal(t, "cl100k_base", cfg.Chunking.Encoding)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm": {"model": "from-file"}}`), 0o644))

	t.Setenv("DOCBOT_LLM_MODEL", "from-env")
	t.Setenv("DOCBOT_PAGES_FRONT_MATTER_OFFSET", "2")
	t.Setenv("DOCBOT_VECTORDB_TIMEOUT", "5s")
	t.Setenv("DOCBOT_MAX_CONCURRENCY", "9")
	t.Setenv("DOCBOT_CHUNKING_SIZE", "300")
	t.Setenv("DOCBOT_PROMPTS_CHAT", "Be brief.")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.Pages.FrontMatterOffset)
	assert.Equal(t, 5*time.Second, cfg.VectorDB.Timeout.Std())
	assert.Equal(t, 9, cfg.MaxConcurrency)
	assert.Equal(t, 300, cfg.Chunking.Size)
	assert.Equal(t, "Be brief.", cfg.Prompts.Chat)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown store", `{"vectordb": {"type": "cassandra"}}`},
		{"milvus without address", `{"vectordb": {"type": "milvus", "address": ""}}`},
		{"overlap not below size", `{"chunking": {"size": 10, "overlap": 10}}`},
		{"negative offset", `{"pages": {"front_matter_offset": -1}}`},
		{"bad level", `{"log_level": "loud"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "docbot.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.LLM.Model = "saved-model"
			cfg.Pages.FrontMatterOffset = 3
			cfg.VectorDB.Timeout = Duration(90 * time.Second)

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestFindConfigFileHonoursEnv(t *testing.T) {
	t.Setenv("DOCBOT_CONFIG", "/etc/docbot/custom.toml")
	assert.Equal(t, "/etc/docbot/custom.toml", FindConfigFile())
}
