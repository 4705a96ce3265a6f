package tools

import (
	"context"
	"fmt"

	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
)

// GenerateInsight extracts structured insights (theme, quote, summary) from
// qualitative text using a configurable analytical approach.
type GenerateInsight struct {
	generator llm.TextGenerator
}

// NewGenerateInsight creates the insight tool.
func NewGenerateInsight(generator llm.TextGenerator) *GenerateInsight {
	return &GenerateInsight{generator: generator}
}

// Name implements Tool.
func (t *GenerateInsight) Name() ToolName { return ToolGenerateInsight }

// Description implements Tool.
func (t *GenerateInsight) Description() string {
	return "Extract structured insights with themes and supporting quotes from text"
}

// Schema implements Tool.
func (t *GenerateInsight) Schema() extractor.Schema {
	return extractor.Schema{Fields: []extractor.Field{
		{Name: "text", Type: extractor.TypeString, Required: true, Description: "the text to analyze"},
		{Name: "approach", Type: extractor.TypeString, Default: "thematic",
			Description: "analytical approach: thematic, grounded_theory, phenomenological, narrative, discourse"},
	}}
}

// Execute implements Tool.
func (t *GenerateInsight) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	text, _ := params["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("generate_insight: text parameter is required")
	}
	approach, _ := params["approach"].(string)
	if approach == "" {
		approach = "thematic"
	}

	raw, err := t.generator.Complete(ctx, llm.InsightSystemPrompt(approach), llm.InsightPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("generate_insight: %w", err)
	}

	insights, err := llm.ParseInsightResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("generate_insight: %w", err)
	}

	// Thread the source document through to each insight so quotes stay
	// attributable in the final report.
	documentID, _ := params["document_id"].(string)
	filename, _ := params["filename"].(string)

	items := make([]map[string]interface{}, 0, len(insights))
	for _, ins := range insights {
		item := map[string]interface{}{
			"theme":   ins.Theme,
			"quote":   ins.Quote,
			"summary": ins.Summary,
		}
		if documentID != "" || filename != "" {
			item["source"] = map[string]interface{}{
				"document_id": documentID,
				"filename":    filename,
			}
		}
		items = append(items, item)
	}

	return map[string]interface{}{
		"insights": items,
		"count":    len(items),
		"approach": approach,
	}, nil
}

// Compile-time assertion.
var _ Tool = (*GenerateInsight)(nil)
