package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadConfig_Defaults verifies sensible defaults with no env vars set.
func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"QUALAGENTS_PORT", "QUALAGENTS_STORAGE_ENGINE", "QUALAGENTS_LLM_PROVIDER",
		"QUALAGENTS_ENABLE_CACHE", "QUALAGENTS_CACHE_TTL", "QUALAGENTS_MAX_TOOL_CALLS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Storage.StorageEngine != "sqlite" {
		t.Errorf("expected default engine sqlite, got %s", cfg.Storage.StorageEngine)
	}
	if cfg.LLM.LLMProvider != "openai" {
		t.Errorf("expected default provider openai, got %s", cfg.LLM.LLMProvider)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Errorf("expected default cache TTL 1h, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Analysis.MaxToolCalls != 3 {
		t.Errorf("expected default max tool calls 3, got %d", cfg.Analysis.MaxToolCalls)
	}
	if cfg.LLM.ExtractorMaxRetries != 2 {
		t.Errorf("expected default extractor retries 2, got %d", cfg.LLM.ExtractorMaxRetries)
	}
}

// TestLoadConfig_EnvOverrides verifies env vars override defaults.
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("QUALAGENTS_PORT", "9191")
	t.Setenv("QUALAGENTS_STORAGE_ENGINE", "postgres")
	t.Setenv("QUALAGENTS_ENABLE_CACHE", "false")
	t.Setenv("QUALAGENTS_CACHE_TTL", "30m")
	t.Setenv("QUALAGENTS_LLM_RPS", "2.5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Storage.StorageEngine != "postgres" {
		t.Errorf("expected engine postgres, got %s", cfg.Storage.StorageEngine)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled via env")
	}
	if cfg.Cache.DefaultTTL != 30*time.Minute {
		t.Errorf("expected cache TTL 30m, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.LLM.RequestsPerSecond != 2.5 {
		t.Errorf("expected LLM rps 2.5, got %f", cfg.LLM.RequestsPerSecond)
	}
}

// TestLoadConfig_InvalidValuesFallBack verifies unparseable env values fall
// back to defaults instead of failing startup.
func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("QUALAGENTS_PORT", "not-a-number")
	t.Setenv("QUALAGENTS_ENABLE_CACHE", "maybe")
	t.Setenv("QUALAGENTS_CACHE_TTL", "soon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("invalid port should fall back to 8000, got %d", cfg.Server.Port)
	}
	if !cfg.Cache.Enabled {
		t.Error("invalid bool should fall back to true")
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Errorf("invalid duration should fall back to 1h, got %v", cfg.Cache.DefaultTTL)
	}
}

// TestLoadAgentDefinitions parses a YAML agents file and looks up an agent.
func TestLoadAgentDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yaml")
	content := `agents:
  - name: thematic-analyzer
    model: gpt-4o
    system_prompt: "You are a qualitative research expert."
    temperature: 0.7
    max_tool_calls: 4
    tools: [document_search, generate_insight]
  - name: sentiment-scanner
    model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write agents file: %v", err)
	}

	defs, err := LoadAgentDefinitions(path)
	if err != nil {
		t.Fatalf("LoadAgentDefinitions failed: %v", err)
	}
	if len(defs.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(defs.Agents))
	}

	agent, ok := defs.Lookup("thematic-analyzer")
	if !ok {
		t.Fatal("expected to find thematic-analyzer")
	}
	if agent.Model != "gpt-4o" || agent.MaxToolCalls != 4 || len(agent.Tools) != 2 {
		t.Errorf("unexpected agent config: %+v", agent)
	}

	if _, ok := defs.Lookup("missing"); ok {
		t.Error("lookup of missing agent should fail")
	}
}

// TestLoadAgentDefinitions_Invalid rejects nameless agents and missing files.
func TestLoadAgentDefinitions_Invalid(t *testing.T) {
	if _, err := LoadAgentDefinitions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  - model: gpt-4o\n"), 0o600); err != nil {
		t.Fatalf("failed to write agents file: %v", err)
	}
	if _, err := LoadAgentDefinitions(path); err == nil {
		t.Error("expected error for nameless agent")
	}
}
