package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8137", cfg.ListenAddr)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "qwen2.5:latest", cfg.LLMModel)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Empty(t, cfg.ExecutorURL)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
llm_provider: openai
llm_model: gpt-4o
max_iterations: 8
tool_timeout: 45s
executor_url: http://localhost:7100
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, 8, cfg.MaxIterations)
	assert.Equal(t, 45*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "http://localhost:7100", cfg.ExecutorURL)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_model: from-file\n"), 0644))

	t.Setenv("REAGENT_LLM_MODEL", "from-env")
	t.Setenv("REAGENT_MAX_ITERATIONS", "12")
	t.Setenv("REAGENT_TOOL_TIMEOUT", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLMModel)
	assert.Equal(t, 12, cfg.MaxIterations)
	assert.Equal(t, 2*time.Minute, cfg.ToolTimeout)
}

func TestLoad_InvalidEnvNumbersIgnored(t *testing.T) {
	t.Setenv("REAGENT_MAX_ITERATIONS", "not-a-number")
	t.Setenv("REAGENT_TOOL_TIMEOUT", "-5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
}

func TestLoad_NonPositiveValuesClamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: -1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxIterations)
}
