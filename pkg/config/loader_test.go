package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-ai/switchyard/pkg/config/provider"
)

const sampleYAML = `
version: "1"
name: test-gateway
global:
  server:
    port: 9600
  proxy:
    max_chain_depth: 2
providers:
  my-openai:
    type: openai
    api_key: ${SWITCHYARD_TEST_KEY:-sk-fallback}
routes:
  claude:
    dialect: anthropic
    provider: my-openai
    model_mappings:
      - source_model: claude-3-5-sonnet-20241022
        target_model: gpt-4o
        type: exact
      - target_model: gpt-4o-mini
        type: default
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-gateway", cfg.Name)
	assert.Equal(t, 9600, cfg.Global.Server.Port)
	assert.Equal(t, 2, cfg.Global.Proxy.MaxChainDepth)
	// Unset settings still get their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Global.Server.Host)
	assert.Equal(t, 300, cfg.Global.Proxy.RequestTimeout)

	p, ok := cfg.GetProvider("my-openai")
	require.True(t, ok)
	assert.Equal(t, "openai", p.Type)

	r, ok := cfg.GetRoute("claude")
	require.True(t, ok)
	assert.Equal(t, "claude", r.ProxyPath)
	require.Len(t, r.ModelMappings, 2)
	assert.Equal(t, MappingExact, r.ModelMappings[0].Type)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("SWITCHYARD_TEST_KEY", "sk-from-env")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Providers["my-openai"].APIKey)
}

func TestParseEnvDefault(t *testing.T) {
	os.Unsetenv("SWITCHYARD_TEST_KEY")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Providers["my-openai"].APIKey)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	_, err := Parse([]byte(`
routes:
  broken:
    dialect: openai
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte(`{{{`))
	require.Error(t, err)
}

func TestLoaderLoadsFromFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switchyard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	p, err := provider.NewFileProvider(path)
	require.NoError(t, err)
	loader := NewLoader(p)
	defer loader.Close()

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-gateway", cfg.Name)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switchyard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Global.Server.Port)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
