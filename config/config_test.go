package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/agent"
)

var configKeys = []string{
	"LLM_TYPE", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_DEPLOYMENT", "OPENAI_API_VERSION",
	"DEEPSEEK_API_KEY", "DEEPSEEK_MODEL", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
	"CHECKPOINT_BACKEND", "CHECKPOINT_DB_PATH", "CHECKPOINT_CACHE_SIZE",
	"DATA_DB_PATH", "OUTPUT_DIRECTORY", "DOCUMENTATION_PATH",
	"MAX_TURNS", "MERGE_MODE", "MAX_PARALLEL_TOOLS", "MODEL_MAX_RETRIES", "TOOL_TIMEOUT",
	"PYTHON_BIN", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, LLMOpenAI, cfg.LLM.Type)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAIModel)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, BackendSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, 256, cfg.Checkpoint.CacheSize)
	assert.Equal(t, 25, cfg.Agent.MaxTurns)
	assert.Equal(t, agent.MergeFullHistory, cfg.Agent.MergeMode)
	assert.Equal(t, 1, cfg.Agent.MaxParallelTools)
	assert.Equal(t, 2*time.Minute, cfg.Agent.ToolTimeout)
	assert.Equal(t, "python3", cfg.PythonBin)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_TYPE", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("CHECKPOINT_BACKEND", "memory")
	t.Setenv("MAX_TURNS", "7")
	t.Setenv("MERGE_MODE", " Final-Only ")
	t.Setenv("MAX_PARALLEL_TOOLS", "4")
	t.Setenv("TOOL_TIMEOUT", "45s")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, LLMAnthropic, cfg.LLM.Type)
	assert.NoError(t, cfg.LLM.Validate())
	assert.Equal(t, BackendMemory, cfg.Checkpoint.Backend)
	assert.Equal(t, 7, cfg.Agent.MaxTurns)
	assert.Equal(t, agent.MergeFinalOnly, cfg.Agent.MergeMode)
	assert.Equal(t, 4, cfg.Agent.MaxParallelTools)
	assert.Equal(t, 45*time.Second, cfg.Agent.ToolTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=from-file\nMAX_TURNS=9\n"), 0o600))
	t.Setenv("MAX_TURNS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.LLM.OpenAIAPIKey)
	assert.Equal(t, 3, cfg.Agent.MaxTurns, "environment wins over the env file")
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_TURNS", "many")
	t.Setenv("TOOL_TIMEOUT", "soon")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Agent.MaxTurns)
	assert.Equal(t, 2*time.Minute, cfg.Agent.ToolTimeout)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		msg  string
	}{
		{"unknown backend", "CHECKPOINT_BACKEND", "redis", "CHECKPOINT_BACKEND"},
		{"empty merge mode", "MERGE_MODE", "", "MERGE_MODE"},
		{"unknown merge mode", "MERGE_MODE", "append", "MERGE_MODE"},
		{"negative turns", "MAX_TURNS", "-1", "MAX_TURNS"},
		{"zero parallel tools", "MAX_PARALLEL_TOOLS", "0", "MAX_PARALLEL_TOOLS"},
		{"negative timeout", "TOOL_TIMEOUT", "-1s", "TOOL_TIMEOUT"},
		{"bad log level", "LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"bad log format", "LOG_FORMAT", "xml", "LOG_FORMAT"},
		{"empty checkpoint path", "CHECKPOINT_DB_PATH", "", "CHECKPOINT_DB_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load(missingEnvFile(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLLMConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LLMConfig
		wantErr string
	}{
		{"openai ok", LLMConfig{Type: LLMOpenAI, OpenAIAPIKey: "k"}, ""},
		{"openai missing key", LLMConfig{Type: LLMOpenAI}, "OPENAI_API_KEY"},
		{"azure ok", LLMConfig{Type: LLMAzureOpenAI, AzureEndpoint: "https://x", AzureAPIKey: "k", AzureDeployment: "d"}, ""},
		{"azure missing deployment", LLMConfig{Type: LLMAzureOpenAI, AzureEndpoint: "https://x", AzureAPIKey: "k"}, "AZURE_OPENAI_DEPLOYMENT"},
		{"deepseek missing key", LLMConfig{Type: LLMDeepSeek}, "DEEPSEEK_API_KEY"},
		{"anthropic ok", LLMConfig{Type: LLMAnthropic, AnthropicAPIKey: "k"}, ""},
		{"unknown", LLMConfig{Type: "llama"}, "unsupported LLM_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
