package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 200, cfg.Chunker.TokenLimit)
	assert.Equal(t, 3, cfg.Search.Limit)
	assert.Equal(t, 64, cfg.VectorIndex.BatchSize)
	assert.Equal(t, 6334, cfg.VectorIndex.Qdrant.Port)
	assert.Equal(t, "text-embedding-ada-002", cfg.Embedder.OpenAI.Model)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
source:
  type: local
  local:
    root: /srv/docs
embedder:
  type: hashing
  hashing:
    dimension: 128
vector_index:
  type: chromem
  collection: notes
  content_addressed_ids: true
answer:
  type: extractive
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Source.Type)
	assert.Equal(t, "/srv/docs", cfg.Source.Local.Root)
	assert.Equal(t, 128, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "chromem", cfg.VectorIndex.Type)
	assert.Equal(t, "notes", cfg.VectorIndex.Collection)
	assert.True(t, cfg.VectorIndex.ContentAddressedIDs)
	assert.Equal(t, "cosine", cfg.VectorIndex.Distance)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
vector_index:
  collection: from-file
  qdrant:
    port: 7000
`)
	t.Setenv("DRIVERAG_VECTOR_INDEX__COLLECTION", "from-env")
	t.Setenv("DRIVERAG_VECTOR_INDEX__QDRANT__PORT", "6999")
	t.Setenv("DRIVERAG_SEARCH__LIMIT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.VectorIndex.Collection)
	assert.Equal(t, 6999, cfg.VectorIndex.Qdrant.Port)
	assert.Equal(t, 7, cfg.Search.Limit)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "vector_index.qdrant.api_key", envKey("DRIVERAG_VECTOR_INDEX__QDRANT__API_KEY"))
	assert.Equal(t, "metrics.addr", envKey("DRIVERAG_METRICS__ADDR"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"source type", func(c *AppConfig) { c.Source.Type = "s3" }},
		{"drive credentials", func(c *AppConfig) { c.Source.Drive.CredentialsFile = "" }},
		{"embedder type", func(c *AppConfig) { c.Embedder.Type = "bert" }},
		{"index type", func(c *AppConfig) { c.VectorIndex.Type = "faiss" }},
		{"distance", func(c *AppConfig) { c.VectorIndex.Distance = "manhattan" }},
		{"answer type", func(c *AppConfig) { c.Answer.Type = "oracle" }},
		{"token limit", func(c *AppConfig) { c.Chunker.TokenLimit = -1 }},
		{"batch size", func(c *AppConfig) { c.VectorIndex.BatchSize = -5 }},
		{"log format", func(c *AppConfig) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "source:\n  type: ftp\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.VectorIndex.Collection = "saved"
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "driverag", "config.yaml"), path)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)
}

func TestLoadDefaultPrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "vector_index:\n  collection: local-one\n")
	t.Chdir(dir)

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, "local-one", cfg.VectorIndex.Collection)
}
