package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "geo.txt"), []byte("The capital of France is Paris."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "sub", "fruit.md"), []byte("Bananas are rich in potassium."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "logo.png"), []byte("\x89PNG"), 0o600))

	cfg := fmt.Sprintf(`
source:
  type: local
  local:
    root: %s
embedder:
  type: hashing
  hashing:
    dimension: 64
vector_index:
  type: chromem
  collection: test
  chromem:
    path: %s
answer:
  type: extractive
  extractive:
    max_sentences: 1
log:
  level: error
`, docs, filepath.Join(dir, "index"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestSearchAsk(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 2 documents as 2 chunks into test")

	out, err = run(t, "--config", cfg, "search", "capital", "of", "France", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "The capital of France is Paris.")
	assert.NotContains(t, out, "Bananas")

	out, err = run(t, "--config", cfg, "search", "capital", "--filter", "source_name=fruit.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Bananas")
	assert.NotContains(t, out, "Paris")

	out, err = run(t, "--config", cfg, "ask", "What is the capital of France?")
	require.NoError(t, err)
	assert.Contains(t, out, "The capital of France is Paris.")
}

func TestCollectionDelete(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "collection", "ensure")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "collection", "delete")
	require.NoError(t, err)

	_, err = run(t, "--config", cfg, "search", "anything")
	assert.ErrorContains(t, err, "collection not found")
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "search")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  type: ftp\n"), 0o600))

	_, err := run(t, "--config", path, "collection", "ensure")
	assert.ErrorContains(t, err, "invalid config")
}
