package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// Tagger backfills the classification tag on untagged memory records.
// The memory pipeline satisfies it.
type Tagger interface {
	EnsureTagged(ctx context.Context, rec *types.MemoryRecord) error
}

// DocumentSearch retrieves stored memories relevant to a query. It prefers
// embedding similarity when the store supports it and degrades to keyword
// matching otherwise; degraded results are flagged and carry the placeholder
// relevance score.
type DocumentSearch struct {
	store    storage.SemanticStore
	embedder llm.EmbeddingGenerator
	tagger   Tagger
}

// NewDocumentSearch creates the search tool. The embedder may be nil, which
// forces keyword search; a nil tagger disables the auto_tag parameter.
func NewDocumentSearch(store storage.SemanticStore, embedder llm.EmbeddingGenerator, tagger Tagger) *DocumentSearch {
	return &DocumentSearch{store: store, embedder: embedder, tagger: tagger}
}

// Name implements Tool.
func (t *DocumentSearch) Name() ToolName { return ToolDocumentSearch }

// Description implements Tool.
func (t *DocumentSearch) Description() string {
	return "Search through stored documents and memories for relevant information"
}

// Schema implements Tool.
func (t *DocumentSearch) Schema() extractor.Schema {
	return extractor.Schema{Fields: []extractor.Field{
		{Name: "query", Type: extractor.TypeString, Required: true, Description: "the search query"},
		{Name: "limit", Type: extractor.TypeInt, Default: 5, Description: "maximum results"},
		{Name: "offset", Type: extractor.TypeInt, Default: 0, Description: "ranked results to skip"},
		{Name: "min_score", Type: extractor.TypeFloat, Default: 0.0, Description: "minimum relevance score"},
		{Name: "auto_tag", Type: extractor.TypeBool, Default: false, Description: "classify untagged results"},
	}}
}

// Execute implements Tool.
func (t *DocumentSearch) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	if t.store == nil {
		return nil, fmt.Errorf("document_search: no semantic store configured")
	}

	query, _ := params["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("document_search: query parameter is required")
	}

	limit := intParam(params, "limit", 5)
	scope := scopeFromParams(params)

	sq := storage.SearchQuery{
		Text:     query,
		Scope:    scope,
		Limit:    limit,
		Offset:   intParam(params, "offset", 0),
		MinScore: floatParam(params, "min_score"),
	}

	degraded := true
	if t.store.VectorSearchAvailable() && t.embedder != nil {
		embedding, err := t.embedder.Embed(ctx, query)
		if err != nil {
			log.Printf("tools: embedding failed, degrading to keyword search: %v", err)
		} else {
			sq.Embedding = embedding
			degraded = false
		}
	}

	results, err := t.store.SearchMemories(ctx, sq)
	if err != nil {
		return nil, fmt.Errorf("document_search: %w", err)
	}

	if t.tagger != nil && boolParam(params, "auto_tag") {
		for i := range results {
			if results[i].Tag != "" {
				continue
			}
			rec := results[i].MemoryRecord
			if err := t.tagger.EnsureTagged(ctx, &rec); err != nil {
				log.Printf("tools: tag backfill failed for %s: %v", rec.ID, err)
				continue
			}
			results[i].MemoryRecord = rec
		}
	}

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		item := map[string]interface{}{
			"id":    r.ID,
			"text":  r.Text,
			"score": r.Score,
		}
		if r.Tag != "" {
			item["tag"] = string(r.Tag)
		}
		if r.Metadata != nil {
			item["metadata"] = r.Metadata
		}
		items = append(items, item)
	}

	return map[string]interface{}{
		"results":  items,
		"count":    len(items),
		"degraded": degraded,
	}, nil
}

// intParam reads an integer parameter accepting both int and the float64
// that JSON decoding produces.
func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}

func boolParam(params map[string]interface{}, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func floatParam(params map[string]interface{}, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// scopeFromParams builds the memory scope from parameters the agent injects
// alongside the extracted ones.
func scopeFromParams(params map[string]interface{}) types.MemoryScope {
	return types.MemoryScope{
		ProjectID:  intParam(params, "project_id", 0),
		AgentID:    intParam(params, "agent_id", 0),
		AnalysisID: intParam(params, "analysis_id", 0),
	}
}

// Compile-time assertion.
var _ Tool = (*DocumentSearch)(nil)
