package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
)

// LLMRouter asks the model which registered tool fits a query. An invalid or
// unregistered suggestion falls back to document search rather than failing
// the analysis.
type LLMRouter struct {
	generator llm.TextGenerator
	registry  *Registry
}

// NewLLMRouter creates the routing tool over the given registry.
func NewLLMRouter(generator llm.TextGenerator, registry *Registry) *LLMRouter {
	return &LLMRouter{generator: generator, registry: registry}
}

// Name implements Tool.
func (t *LLMRouter) Name() ToolName { return ToolLLMRouter }

// Description implements Tool.
func (t *LLMRouter) Description() string {
	return "Choose the most appropriate analysis tool for a query"
}

// Schema implements Tool.
func (t *LLMRouter) Schema() extractor.Schema {
	return extractor.Schema{Fields: []extractor.Field{
		{Name: "query", Type: extractor.TypeString, Required: true, Description: "the query to route"},
	}}
}

// Execute implements Tool.
func (t *LLMRouter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("llm_router: query parameter is required")
	}

	raw, err := t.generator.Complete(ctx, llm.RouterSystemPrompt(t.registry.CatalogDescription()), query)
	if err != nil {
		return nil, fmt.Errorf("llm_router: %w", err)
	}

	resp, err := llm.ParseRouterResponse(raw)
	if err != nil || !t.registry.Has(ToolName(resp.Tool)) {
		suggested := ""
		if resp != nil {
			suggested = resp.Tool
		}
		log.Printf("tools: router suggested invalid tool %q, defaulting to %s", suggested, ToolDocumentSearch)
		return map[string]interface{}{
			"tool":      string(ToolDocumentSearch),
			"rationale": "Router suggestion was not a registered tool; defaulting to document search.",
		}, nil
	}

	return map[string]interface{}{
		"tool":      resp.Tool,
		"rationale": resp.Rationale,
	}, nil
}

// Compile-time assertion.
var _ Tool = (*LLMRouter)(nil)
