package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/pkg/types"
)

// emptyMemoriesSummary is the fixed response for an empty memory set. Kept
// stable because downstream consumers match on it.
const emptyMemoriesSummary = "No memories provided to summarize."

// maxSummaryWords triggers one regeneration pass when exceeded.
const maxSummaryWords = 150

// priorityMetadataTags marks memories that are always included in the
// summarization input regardless of score.
var priorityMetadataTags = map[string]bool{
	"insight":        true,
	"barrier":        true,
	"theme":          true,
	"recommendation": true,
	"observation":    true,
}

// SummarizeMemory condenses a set of scored memories into a short summary.
// Priority-tagged memories are always included; the rest compete on score
// for five slots.
type SummarizeMemory struct {
	generator llm.TextGenerator
}

// NewSummarizeMemory creates the summarization tool.
func NewSummarizeMemory(generator llm.TextGenerator) *SummarizeMemory {
	return &SummarizeMemory{generator: generator}
}

// Name implements Tool.
func (t *SummarizeMemory) Name() ToolName { return ToolSummarizeMemory }

// Description implements Tool.
func (t *SummarizeMemory) Description() string {
	return "Summarize a set of retrieved memories into concise context"
}

// Schema implements Tool.
func (t *SummarizeMemory) Schema() extractor.Schema {
	// Memories are injected by the caller, not extracted from text.
	return extractor.Schema{}
}

// Execute implements Tool. The "memories" parameter carries
// []types.ScoredMemory injected by the memory pipeline.
func (t *SummarizeMemory) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	memories, _ := params["memories"].([]types.ScoredMemory)
	if len(memories) == 0 {
		return map[string]interface{}{
			"summary":      emptyMemoriesSummary,
			"memory_count": 0,
		}, nil
	}

	selected := selectForSummary(memories)
	memoryText := formatMemories(selected)

	summary, err := t.generator.Complete(ctx, llm.MemorySummarySystemPrompt, llm.MemorySummaryPrompt(memoryText))
	if err != nil {
		return nil, fmt.Errorf("summarize_memory: %w", err)
	}
	summary = strings.TrimSpace(summary)

	if wordCount(summary) > maxSummaryWords {
		shorter, err := t.generator.Complete(ctx, llm.MemorySummarySystemPrompt, llm.ShorterSummaryPrompt(summary))
		if err != nil {
			log.Printf("tools: summary regeneration failed, keeping long summary: %v", err)
		} else {
			summary = strings.TrimSpace(shorter)
		}
	}

	return map[string]interface{}{
		"summary":      summary,
		"memory_count": len(memories),
	}, nil
}

// selectForSummary keeps all priority-tagged memories plus the top five
// remaining by score.
func selectForSummary(memories []types.ScoredMemory) []types.ScoredMemory {
	var priority, rest []types.ScoredMemory
	for _, m := range memories {
		if priorityMetadataTags[metadataTag(m)] {
			priority = append(priority, m)
		} else {
			rest = append(rest, m)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Score > rest[j].Score })
	if len(rest) > 5 {
		rest = rest[:5]
	}
	return append(priority, rest...)
}

// metadataTag returns the memory's classification label, preferring the
// metadata "tag" entry over the record tag.
func metadataTag(m types.ScoredMemory) string {
	if m.Metadata != nil {
		if tag, ok := m.Metadata["tag"].(string); ok && tag != "" {
			return tag
		}
	}
	return string(m.Tag)
}

func formatMemories(memories []types.ScoredMemory) string {
	var b strings.Builder
	for _, m := range memories {
		tag := metadataTag(m)
		if tag == "" {
			tag = "untagged"
		}
		fmt.Fprintf(&b, "- [%s] (score: %.2f) %s\n", tag, m.Score, m.Text)
	}
	return b.String()
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// Compile-time assertion.
var _ Tool = (*SummarizeMemory)(nil)
