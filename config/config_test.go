package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
agent:
  name: researcher
  pattern: storm
  output_key: article
  max_parallel: 2
  perspectives: 4
model:
  provider: anthropic
  name: claude-sonnet-4-20250514
  temperature: 0.3
  api_key: ${TEST_ANTHROPIC_KEY}
memory:
  backend: vector
  persist_path: /tmp/mem
engine:
  max_model_calls: 80
logging:
  level: debug
  format: text
`

func TestParse_FullConfig(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "researcher", cfg.Agent.Name)
	assert.Equal(t, "storm", cfg.Agent.Pattern)
	assert.Equal(t, "article", cfg.Agent.OutputKey)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "vector", cfg.Memory.Backend)
	assert.Equal(t, 80, cfg.Engine.MaxModelCalls)
	assert.Equal(t, "debug", cfg.Logging.Level)

	p := cfg.Params()
	assert.Equal(t, "article", p.OutputKey)
	assert.Equal(t, 2, p.MaxParallel)
	assert.Equal(t, 4, p.Perspectives)
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "assistant", cfg.Agent.Name)
	assert.Equal(t, "react", cfg.Agent.Pattern)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, int64(4096), cfg.Model.MaxTokens)
}

func TestParse_UnknownKeyIsError(t *testing.T) {
	_, err := Parse([]byte("agnet:\n  name: typo\n"))
	require.Error(t, err)
}

func TestParse_ValidationCollectsFieldErrors(t *testing.T) {
	_, err := Parse([]byte(`
agent:
  pattern: mystery
model:
  provider: bedrock
  temperature: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.pattern")
	assert.Contains(t, err.Error(), "model.provider")
	assert.Contains(t, err.Error(), "model.temperature")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CFG_SET", "value")
	os.Unsetenv("CFG_UNSET")

	assert.Equal(t, "value", expandEnv("${CFG_SET}"))
	assert.Equal(t, "", expandEnv("${CFG_UNSET}"))
	assert.Equal(t, "fallback", expandEnv("${CFG_UNSET:-fallback}"))
	assert.Equal(t, "value", expandEnv("${CFG_SET:-fallback}"))
	assert.Equal(t, "plain", expandEnv("plain"))
	assert.Equal(t, "a value b", expandEnv("a ${CFG_SET} b"))
}

func TestLoad_ReadsDotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CFG_FROM_DOTENV=dotenv-key\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("model:\n  api_key: ${CFG_FROM_DOTENV}\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CFG_FROM_DOTENV") })

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Model.APIKey)
}

func TestValidate_NegativeLimits(t *testing.T) {
	cfg := Default()
	cfg.Engine.MaxModelCalls = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.max_model_calls")
}

func TestBuildToolRegistry_RequiresCommand(t *testing.T) {
	cfg := Default()
	cfg.Tools.MCP = []MCPServerConfig{{Name: "fetch"}}

	_, err := cfg.BuildToolRegistry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}
