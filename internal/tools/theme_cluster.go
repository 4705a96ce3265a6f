package tools

import (
	"context"
	"fmt"

	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
)

// uncategorizedTheme collects excerpts the model failed to assign.
const uncategorizedTheme = "Uncategorized"

// ThemeCluster groups excerpts into named conceptual themes. The model's
// clustering is normalized into an exact partition of the input: every
// excerpt lands in exactly one cluster, with leftovers collected under an
// Uncategorized theme.
type ThemeCluster struct {
	generator llm.TextGenerator
}

// NewThemeCluster creates the clustering tool.
func NewThemeCluster(generator llm.TextGenerator) *ThemeCluster {
	return &ThemeCluster{generator: generator}
}

// Name implements Tool.
func (t *ThemeCluster) Name() ToolName { return ToolThemeCluster }

// Description implements Tool.
func (t *ThemeCluster) Description() string {
	return "Cluster related excerpts into named conceptual themes"
}

// Schema implements Tool.
func (t *ThemeCluster) Schema() extractor.Schema {
	// The excerpts list is injected by the caller rather than extracted
	// from free text, so the extractable schema is empty.
	return extractor.Schema{}
}

// Execute implements Tool. The "excerpts" parameter is a list of strings
// (or a JSON-decoded []interface{} of strings).
func (t *ThemeCluster) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	excerpts := stringListParam(params, "excerpts")
	if len(excerpts) == 0 {
		return nil, fmt.Errorf("theme_cluster: excerpts parameter is required")
	}

	raw, err := t.generator.Complete(ctx, llm.ClusterSystemPrompt, llm.ClusterPrompt(excerpts))
	if err != nil {
		return nil, fmt.Errorf("theme_cluster: %w", err)
	}

	clusters, err := llm.ParseClusterResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("theme_cluster: %w", err)
	}

	normalized := normalizeClusters(excerpts, clusters)

	items := make([]map[string]interface{}, 0, len(normalized))
	for _, c := range normalized {
		items = append(items, map[string]interface{}{
			"theme":       c.Theme,
			"description": c.Description,
			"excerpts":    c.Excerpts,
		})
	}

	return map[string]interface{}{
		"clusters": items,
		"count":    len(items),
	}, nil
}

// normalizeClusters forces the model output into an exact partition of the
// input excerpts, cardinality included: an excerpt appearing twice in the
// input lands in clusters twice. Excerpts the model invented are dropped,
// repeated assignments consume one occurrence each, and unassigned
// occurrences go to Uncategorized.
func normalizeClusters(input []string, clusters []llm.ClusterResponse) []llm.ClusterResponse {
	remaining := make(map[string]int, len(input))
	for _, e := range input {
		remaining[e]++
	}

	var out []llm.ClusterResponse
	for _, c := range clusters {
		var kept []string
		for _, e := range c.Excerpts {
			if remaining[e] > 0 {
				kept = append(kept, e)
				remaining[e]--
			}
		}
		if len(kept) > 0 {
			out = append(out, llm.ClusterResponse{
				Theme:       c.Theme,
				Description: c.Description,
				Excerpts:    kept,
			})
		}
	}

	var leftover []string
	for _, e := range input {
		if remaining[e] > 0 {
			leftover = append(leftover, e)
			remaining[e]--
		}
	}
	if len(leftover) > 0 {
		out = append(out, llm.ClusterResponse{
			Theme:       uncategorizedTheme,
			Description: "Excerpts that did not fit an identified theme",
			Excerpts:    leftover,
		})
	}

	return out
}

// stringListParam reads a string-list parameter accepting both []string and
// the []interface{} that JSON decoding produces.
func stringListParam(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Compile-time assertion.
var _ Tool = (*ThemeCluster)(nil)
