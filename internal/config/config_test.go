package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err) // explicit file path that doesn't exist must error

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3, cfg.Run.MaxRetries)
	assert.Equal(t, 1, cfg.Run.MaxLinkDepth)
	assert.Equal(t, "embeddinggemma", cfg.Embedding.Model)
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpusforge.yaml")
	content := `
log_level: debug
database: postgres://localhost/test
sources:
  - name: docs
    type: file
    max_link_depth: 2
    settings:
      root: /tmp/docs
embedding:
  enabled: true
  model: custom-model
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/test", cfg.Database)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "docs", cfg.Sources[0].Name)
	assert.Equal(t, 2, cfg.Sources[0].MaxLinkDepth)
	assert.True(t, cfg.Embedding.Enabled)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
}

func TestProcessingRelevantExcludesWorkerLocalFields(t *testing.T) {
	cfg := &Config{
		Database: "postgres://x",
		Run:      RunConfig{WorkerID: "worker-1", MaxLinkDepth: 3},
	}
	relevant := cfg.ProcessingRelevant()

	assert.Equal(t, "postgres://x", relevant["database"])
	assert.Equal(t, 3, relevant["max_link_depth"])
	for _, v := range relevant {
		assert.NotEqual(t, "worker-1", v)
	}
}

func TestSourceConfigFactoryConfig(t *testing.T) {
	sc := SourceConfig{Name: "docs", Type: "file", Settings: map[string]any{"root": "/tmp"}}
	fc := sc.FactoryConfig()
	assert.Equal(t, "docs", fc.Name)
	assert.Equal(t, "file", string(fc.Type))
	assert.Equal(t, "/tmp", fc.Settings["root"])
}
