// Package config provides application configuration read from the
// environment, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/logging"
)

// Supported LLM_TYPE values.
const (
	LLMOpenAI      = "openai"
	LLMAzureOpenAI = "azure_openai"
	LLMDeepSeek    = "deepseek"
	LLMAnthropic   = "anthropic"
)

// Supported CHECKPOINT_BACKEND values.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	LLM        LLMConfig
	Checkpoint CheckpointConfig
	Agent      AgentConfig
	Log        LogConfig

	DataDBPath        string
	OutputDirectory   string
	DocumentationPath string
	PythonBin         string
	HTTPAddr          string
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Type string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	APIVersion      string

	DeepSeekAPIKey string
	DeepSeekModel  string

	AnthropicAPIKey string
	AnthropicModel  string

	MaxRetries int
}

// CheckpointConfig selects the session checkpoint backend.
type CheckpointConfig struct {
	Backend   string
	DBPath    string
	CacheSize int
}

// AgentConfig holds agent loop and supervisor settings.
type AgentConfig struct {
	MaxTurns         int
	MergeMode        agent.MergeMode
	MaxParallelTools int
	ToolTimeout      time.Duration
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables after loading the
// given .env files (".env" when none are given). Missing files are ignored
// and variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		LLM: LLMConfig{
			Type:            strings.ToLower(getEnv("LLM_TYPE", LLMOpenAI)),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			AzureEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
			APIVersion:      getEnv("OPENAI_API_VERSION", "2024-10-21"),
			DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
			DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxRetries:      getEnvInt("MODEL_MAX_RETRIES", 3),
		},
		Checkpoint: CheckpointConfig{
			Backend:   strings.ToLower(getEnv("CHECKPOINT_BACKEND", BackendSQLite)),
			DBPath:    getEnv("CHECKPOINT_DB_PATH", "./data/checkpoints.db"),
			CacheSize: getEnvInt("CHECKPOINT_CACHE_SIZE", 256),
		},
		Agent: AgentConfig{
			MaxTurns:         getEnvInt("MAX_TURNS", 25),
			MergeMode:        agent.MergeMode(getEnv("MERGE_MODE", string(agent.MergeFullHistory))),
			MaxParallelTools: getEnvInt("MAX_PARALLEL_TOOLS", 1),
			ToolTimeout:      getEnvDuration("TOOL_TIMEOUT", 2*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
		DataDBPath:        getEnv("DATA_DB_PATH", "./data/data.db"),
		OutputDirectory:   getEnv("OUTPUT_DIRECTORY", "./output"),
		DocumentationPath: getEnv("DOCUMENTATION_PATH", ""),
		PythonBin:         getEnv("PYTHON_BIN", "python3"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	return nil
}

// Validate checks settings every command relies on. Provider credentials
// are checked separately by LLMConfig.Validate.
func (c *Config) Validate() error {
	switch c.Checkpoint.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Checkpoint.DBPath == "" {
			return fmt.Errorf("CHECKPOINT_DB_PATH cannot be empty with the sqlite backend")
		}
	default:
		return fmt.Errorf("CHECKPOINT_BACKEND must be %q or %q, got %q", BackendMemory, BackendSQLite, c.Checkpoint.Backend)
	}

	if c.Checkpoint.CacheSize < 0 {
		return fmt.Errorf("CHECKPOINT_CACHE_SIZE must be >= 0")
	}

	if c.Agent.MaxTurns < 0 {
		return fmt.Errorf("MAX_TURNS must be >= 0")
	}

	mode, err := agent.ParseMergeMode(string(c.Agent.MergeMode))
	if err != nil {
		return fmt.Errorf("MERGE_MODE: %w", err)
	}
	c.Agent.MergeMode = mode

	if c.Agent.MaxParallelTools < 1 {
		return fmt.Errorf("MAX_PARALLEL_TOOLS must be > 0")
	}

	if c.Agent.ToolTimeout < 0 {
		return fmt.Errorf("TOOL_TIMEOUT must be >= 0")
	}

	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("MODEL_MAX_RETRIES must be >= 0")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}

	if c.DataDBPath == "" {
		return fmt.Errorf("DATA_DB_PATH cannot be empty")
	}

	if c.OutputDirectory == "" {
		return fmt.Errorf("OUTPUT_DIRECTORY cannot be empty")
	}

	return nil
}

// Validate checks that the selected provider has its credentials.
func (c LLMConfig) Validate() error {
	switch c.Type {
	case LLMOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for LLM_TYPE=%s", c.Type)
		}
	case LLMAzureOpenAI:
		if c.AzureEndpoint == "" || c.AzureAPIKey == "" || c.AzureDeployment == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and AZURE_OPENAI_DEPLOYMENT are required for LLM_TYPE=%s", c.Type)
		}
	case LLMDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return fmt.Errorf("DEEPSEEK_API_KEY is required for LLM_TYPE=%s", c.Type)
		}
	case LLMAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for LLM_TYPE=%s", c.Type)
		}
	default:
		return fmt.Errorf("unsupported LLM_TYPE %q (openai, azure_openai, deepseek, anthropic)", c.Type)
	}

	return nil
}

// Logger builds the structured logger described by the configuration.
func (c *Config) Logger() *logging.StructuredLogger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}

	return logging.NewSlogLogger(level, c.Log.Format, false)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
