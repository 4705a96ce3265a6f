// Package tools implements the closed analysis tool catalog: six tools the
// agent loop can invoke, a registry that resolves them by name, and keyword
// inference for mapping free-text planning output onto a tool choice.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qualagents/qualagents/internal/extractor"
)

// ToolName identifies a registered analysis tool.
type ToolName string

// The closed tool set. Unknown names are rejected by the registry; the agent
// loop treats that as a terminal error.
const (
	ToolDocumentSearch    ToolName = "document_search"
	ToolGenerateInsight   ToolName = "generate_insight"
	ToolSentimentAnalysis ToolName = "sentiment_analysis"
	ToolThemeCluster      ToolName = "theme_cluster"
	ToolLLMRouter         ToolName = "llm_router"
	ToolSummarizeMemory   ToolName = "summarize_memory"
)

// Tool is a single invocable analysis capability.
type Tool interface {
	// Name returns the tool's registry name.
	Name() ToolName

	// Description is a one-line summary used in routing prompts.
	Description() string

	// Schema describes the tool's extractable parameters.
	Schema() extractor.Schema

	// Execute runs the tool with validated parameters and returns a
	// structured result.
	Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// Registry resolves tools by name.
type Registry struct {
	tools map[ToolName]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[ToolName]Tool)}
}

// Register adds a tool, replacing any existing registration with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name ToolName) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %q", name)
	}
	return t, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name ToolName) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []ToolName {
	names := make([]ToolName, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// CatalogDescription renders a "name: description" line per registered tool,
// for use in routing prompts.
func (r *Registry) CatalogDescription() string {
	var b strings.Builder
	for _, name := range r.Names() {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.tools[name].Description())
	}
	return b.String()
}

// InferTool maps free-text planning output onto a tool by keyword priority.
// The first matching keyword wins; text that names no tool defaults to
// insight generation.
func InferTool(response string) ToolName {
	lower := strings.ToLower(response)
	switch {
	case strings.Contains(lower, string(ToolDocumentSearch)) || strings.Contains(lower, "search"):
		return ToolDocumentSearch
	case strings.Contains(lower, string(ToolGenerateInsight)) || strings.Contains(lower, "insight"):
		return ToolGenerateInsight
	case strings.Contains(lower, string(ToolSentimentAnalysis)) || strings.Contains(lower, "sentiment"):
		return ToolSentimentAnalysis
	case strings.Contains(lower, string(ToolThemeCluster)) || strings.Contains(lower, "cluster"):
		return ToolThemeCluster
	case strings.Contains(lower, "router"):
		return ToolLLMRouter
	case strings.Contains(lower, string(ToolSummarizeMemory)):
		return ToolSummarizeMemory
	default:
		return ToolGenerateInsight
	}
}

// defaultQueryLimit bounds the query derived from input text by DefaultParams.
const defaultQueryLimit = 100

// DefaultParams returns the caller-side fallback parameters for a tool,
// derived from the input text. They fill fields the extractor cannot recover
// from the planning narrative; tools whose parameters are injected by the
// caller get none.
func DefaultParams(tool ToolName, text string) map[string]interface{} {
	switch tool {
	case ToolDocumentSearch, ToolLLMRouter:
		if q := firstSentence(text, defaultQueryLimit); q != "" {
			return map[string]interface{}{"query": q}
		}
	case ToolGenerateInsight, ToolSentimentAnalysis:
		if text != "" {
			return map[string]interface{}{"text": text}
		}
	}
	return nil
}

// firstSentence returns the text up to the first sentence terminator,
// bounded at limit bytes.
func firstSentence(s string, limit int) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == '.' || r == '?' || r == '!' || r == '\n' {
			s = s[:i]
			break
		}
	}
	s = strings.TrimSpace(s)
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
