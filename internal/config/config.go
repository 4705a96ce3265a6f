// Package config provides configuration management for QualAgents.
// It loads settings from environment variables with the QUALAGENTS_ prefix
// and provides sensible defaults for all configuration options.
//
// The configuration struct is constructed once at process start and passed
// by reference into every component constructor; tests build their own
// instances instead of reading process-global state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qualagents/qualagents/pkg/types"
)

// Config holds all configuration settings for the QualAgents application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Security SecurityConfig
	Cache    CacheConfig
	Analysis AnalysisConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 8000)
	Host string // Server host (default: 0.0.0.0)

	// StreamTimeout bounds a single status-streaming observation.
	// It is enforced only at the observation boundary, never inside the
	// orchestrator (default: 5m).
	StreamTimeout time.Duration
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: postgres, sqlite (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // PostgreSQL connection string
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	LLMProvider          string  // Primary provider: openai, ollama (default: openai)
	SecondaryProvider    string  // Optional secondary provider tried first by the extractor
	OpenAIAPIKey         string  // OpenAI API key
	OpenAIModel          string  // OpenAI model name (default: gpt-4o)
	OpenAIBaseURL        string  // Override for the OpenAI API base URL
	OllamaURL            string  // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string  // Ollama model name (default: qwen2.5:7b)
	EmbeddingModel       string  // Embedding model name (default: text-embedding-3-small)
	Temperature          float64 // Default sampling temperature (default: 0.7)
	RequestsPerSecond    float64 // LLM request rate limit; 0 disables (default: 0)
	ExtractorMaxRetries  int     // Parameter-extraction retries on validation failure (default: 2)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// CacheConfig contains planning-cache settings.
type CacheConfig struct {
	Enabled    bool          // Feature flag; when off every operation is bypassed (default: true)
	DefaultTTL time.Duration // Default entry TTL (default: 1h)
}

// AnalysisConfig contains orchestrator tunables.
type AnalysisConfig struct {
	MaxToolCalls int    // Default tool-call budget per run (default: 3)
	DefaultModel string // Model recorded in reports when the agent sets none
	AgentsFile   string // Optional YAML file with preconfigured agent definitions
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the QUALAGENTS_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvInt("QUALAGENTS_PORT", 8000),
			Host:          getEnv("QUALAGENTS_HOST", "0.0.0.0"),
			StreamTimeout: getEnvDuration("QUALAGENTS_STREAM_TIMEOUT", 5*time.Minute),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("QUALAGENTS_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("QUALAGENTS_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("QUALAGENTS_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			LLMProvider:         getEnv("QUALAGENTS_LLM_PROVIDER", "openai"),
			SecondaryProvider:   getEnv("QUALAGENTS_LLM_SECONDARY_PROVIDER", ""),
			OpenAIAPIKey:        getEnv("QUALAGENTS_OPENAI_API_KEY", ""),
			OpenAIModel:         getEnv("QUALAGENTS_OPENAI_MODEL", "gpt-4o"),
			OpenAIBaseURL:       getEnv("QUALAGENTS_OPENAI_BASE_URL", ""),
			OllamaURL:           getEnv("QUALAGENTS_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:         getEnv("QUALAGENTS_OLLAMA_MODEL", "qwen2.5:7b"),
			EmbeddingModel:      getEnv("QUALAGENTS_EMBEDDING_MODEL", "text-embedding-3-small"),
			Temperature:         getEnvFloat("QUALAGENTS_TEMPERATURE", 0.7),
			RequestsPerSecond:   getEnvFloat("QUALAGENTS_LLM_RPS", 0),
			ExtractorMaxRetries: getEnvInt("QUALAGENTS_EXTRACTOR_MAX_RETRIES", 2),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("QUALAGENTS_SECURITY_MODE", "development"),
			APIToken:     getEnv("QUALAGENTS_API_TOKEN", ""),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("QUALAGENTS_ENABLE_CACHE", true),
			DefaultTTL: getEnvDuration("QUALAGENTS_CACHE_TTL", time.Hour),
		},
		Analysis: AnalysisConfig{
			MaxToolCalls: getEnvInt("QUALAGENTS_MAX_TOOL_CALLS", types.DefaultMaxToolCalls),
			DefaultModel: getEnv("QUALAGENTS_DEFAULT_MODEL", "gpt-4o"),
			AgentsFile:   getEnv("QUALAGENTS_AGENTS_FILE", ""),
		},
	}
	return cfg, nil
}

// AgentDefinitions is a set of preconfigured agents loaded from a YAML file.
type AgentDefinitions struct {
	Agents []types.AgentConfig `yaml:"agents"`
}

// LoadAgentDefinitions parses the agent-definitions YAML file at path.
// Definitions with an empty name are rejected.
func LoadAgentDefinitions(path string) (*AgentDefinitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read agents file: %w", err)
	}

	var defs AgentDefinitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("config: failed to parse agents file: %w", err)
	}

	for i, a := range defs.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("config: agent %d in %s has no name", i, path)
		}
	}
	return &defs, nil
}

// Lookup returns the agent configuration with the given name, or false.
func (d *AgentDefinitions) Lookup(name string) (types.AgentConfig, bool) {
	for _, a := range d.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return types.AgentConfig{}, false
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvFloat returns the environment variable as a float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
