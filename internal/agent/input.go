package agent

import (
	"fmt"
	"strings"

	"github.com/qualagents/qualagents/pkg/types"
)

// ParseInput normalizes the accepted submission shapes into text items:
// a single "text" string, a "texts" list of strings, or "documents" /
// "interviews" lists of objects carrying text plus optional identifiers.
func ParseInput(data map[string]interface{}) ([]types.TextItem, error) {
	if data == nil {
		return nil, fmt.Errorf("agent: no input data")
	}

	if text, ok := data["text"].(string); ok {
		return NormalizeItems([]types.TextItem{{Text: text}}), nil
	}

	if texts, ok := data["texts"].([]interface{}); ok {
		items := make([]types.TextItem, 0, len(texts))
		for _, t := range texts {
			if s, ok := t.(string); ok {
				items = append(items, types.TextItem{Text: s})
			}
		}
		return NormalizeItems(items), nil
	}

	for _, key := range []string{"documents", "interviews"} {
		docs, ok := data[key].([]interface{})
		if !ok {
			continue
		}
		items := make([]types.TextItem, 0, len(docs))
		for _, d := range docs {
			doc, ok := d.(map[string]interface{})
			if !ok {
				continue
			}
			text, _ := doc["text"].(string)
			if text == "" {
				text, _ = doc["content"].(string)
			}
			item := types.TextItem{Text: text}
			item.DocumentID, _ = doc["document_id"].(string)
			item.Filename, _ = doc["filename"].(string)
			if md, ok := doc["metadata"].(map[string]interface{}); ok {
				item.Metadata = md
			}
			items = append(items, item)
		}
		return NormalizeItems(items), nil
	}

	return nil, fmt.Errorf("agent: input data has no text, texts, documents, or interviews field")
}

// ParseParameters reads the analysis tunables out of a submission.
func ParseParameters(data map[string]interface{}) types.AnalysisParameters {
	var p types.AnalysisParameters
	if data == nil {
		return p
	}
	p.ResearchObjective, _ = data["research_objective"].(string)
	p.ThemeCount = intValue(data["theme_count"])
	p.MaxToolCalls = intValue(data["max_tool_calls"])
	if include, ok := data["include_quotes"].(bool); ok {
		p.IncludeQuotes = include
	}
	return p
}

// NormalizeItems fills missing document identifiers and metadata
// deterministically from the item's position.
func NormalizeItems(items []types.TextItem) []types.TextItem {
	out := make([]types.TextItem, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		if item.DocumentID == "" {
			item.DocumentID = fmt.Sprintf("text-%d", i)
		}
		if item.Filename == "" {
			item.Filename = fmt.Sprintf("text-%d.txt", i)
		}
		if len(item.Metadata) == 0 {
			item.Metadata = map[string]interface{}{"source": "inline", "index": i}
		}
		out = append(out, item)
	}
	return out
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
