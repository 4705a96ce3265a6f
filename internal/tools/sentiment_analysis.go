package tools

import (
	"context"
	"fmt"

	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
)

// SentimentAnalysis classifies the emotional tone of text as positive,
// negative, or neutral with a confidence score. Unknown labels from the
// model coerce to neutral and confidence is clamped to [0, 1].
type SentimentAnalysis struct {
	generator llm.TextGenerator
}

// NewSentimentAnalysis creates the sentiment tool.
func NewSentimentAnalysis(generator llm.TextGenerator) *SentimentAnalysis {
	return &SentimentAnalysis{generator: generator}
}

// Name implements Tool.
func (t *SentimentAnalysis) Name() ToolName { return ToolSentimentAnalysis }

// Description implements Tool.
func (t *SentimentAnalysis) Description() string {
	return "Analyze the emotional tone of text (positive, negative, or neutral)"
}

// Schema implements Tool.
func (t *SentimentAnalysis) Schema() extractor.Schema {
	return extractor.Schema{Fields: []extractor.Field{
		{Name: "text", Type: extractor.TypeString, Required: true, Description: "the text to classify"},
	}}
}

// Execute implements Tool.
func (t *SentimentAnalysis) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	text, _ := params["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("sentiment_analysis: text parameter is required")
	}

	raw, err := t.generator.Complete(ctx, llm.SentimentSystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("sentiment_analysis: %w", err)
	}

	resp, err := llm.ParseSentimentResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("sentiment_analysis: %w", err)
	}

	return map[string]interface{}{
		"sentiment":  resp.Sentiment,
		"confidence": resp.Confidence,
	}, nil
}

// Compile-time assertion.
var _ Tool = (*SentimentAnalysis)(nil)
