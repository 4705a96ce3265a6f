package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InsightResponse represents a single insight extracted from an LLM response.
type InsightResponse struct {
	Theme   string `json:"theme"`
	Quote   string `json:"quote"`
	Summary string `json:"summary"`
}

// ClusterResponse represents a single theme cluster from an LLM response.
type ClusterResponse struct {
	Theme       string   `json:"theme"`
	Description string   `json:"description"`
	Excerpts    []string `json:"excerpts"`
}

// SentimentResponse represents a sentiment classification from an LLM response.
type SentimentResponse struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// RouterResponse represents a tool-routing decision from an LLM response.
type RouterResponse struct {
	Tool      string `json:"tool"`
	Rationale string `json:"rationale"`
}

// ExtractJSON extracts the first complete JSON object or array from a string
// that may contain extra text. This handles cases where LLMs add explanations
// before/after the JSON despite instructions.
func ExtractJSON(text string) string {
	// Remove common markdown code block markers
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start := objStart
	open, closing := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, closing = '[', ']'
	}
	if start == -1 {
		return text // No JSON found, return as-is and let parser fail
	}

	depth := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		// Only count brackets outside of strings
		if !inString {
			switch char {
			case open:
				depth++
			case closing:
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // No complete JSON found, return as-is
}

// ParseInsightResponse parses insight extraction output. It accepts either a
// bare JSON array of insight objects or an object with an "insights" key.
// Entries without a theme are skipped. Returns an error only when the JSON
// itself is malformed.
func ParseInsightResponse(raw string) ([]InsightResponse, error) {
	clean := ExtractJSON(raw)

	var insights []InsightResponse
	if err := json.Unmarshal([]byte(clean), &insights); err != nil {
		var wrapped struct {
			Insights []InsightResponse `json:"insights"`
		}
		if err2 := json.Unmarshal([]byte(clean), &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse insight JSON: %w", err)
		}
		insights = wrapped.Insights
	}

	valid := make([]InsightResponse, 0, len(insights))
	for _, ins := range insights {
		if strings.TrimSpace(ins.Theme) == "" {
			continue
		}
		valid = append(valid, ins)
	}
	return valid, nil
}

// ParseClusterResponse parses theme-clustering output. It accepts either a
// bare JSON array of cluster objects or an object with a "clusters" key.
// Clusters without a theme name are skipped.
func ParseClusterResponse(raw string) ([]ClusterResponse, error) {
	clean := ExtractJSON(raw)

	var clusters []ClusterResponse
	if err := json.Unmarshal([]byte(clean), &clusters); err != nil {
		var wrapped struct {
			Clusters []ClusterResponse `json:"clusters"`
		}
		if err2 := json.Unmarshal([]byte(clean), &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse cluster JSON: %w", err)
		}
		clusters = wrapped.Clusters
	}

	valid := make([]ClusterResponse, 0, len(clusters))
	for _, c := range clusters {
		if strings.TrimSpace(c.Theme) == "" {
			continue
		}
		valid = append(valid, c)
	}
	return valid, nil
}

// ParseSentimentResponse parses sentiment output and normalizes it: unknown
// sentiment labels coerce to "neutral" and confidence is clamped to [0, 1].
func ParseSentimentResponse(raw string) (*SentimentResponse, error) {
	clean := ExtractJSON(raw)

	var resp SentimentResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse sentiment JSON: %w", err)
	}

	switch resp.Sentiment {
	case "positive", "negative", "neutral":
	default:
		resp.Sentiment = "neutral"
	}
	if resp.Confidence < 0 {
		resp.Confidence = 0
	}
	if resp.Confidence > 1 {
		resp.Confidence = 1
	}
	return &resp, nil
}

// ParseRouterResponse parses tool-routing output. Returns an error when the
// JSON is malformed or the tool field is empty; the caller decides the
// fallback tool.
func ParseRouterResponse(raw string) (*RouterResponse, error) {
	clean := ExtractJSON(raw)

	var resp RouterResponse
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse router JSON: %w", err)
	}
	if strings.TrimSpace(resp.Tool) == "" {
		return nil, fmt.Errorf("router response has no tool")
	}
	return &resp, nil
}

// ParseParamsResponse parses a flat JSON object of extracted parameters.
// Used by the parameter extractor; validation against the tool schema
// happens at the caller.
func ParseParamsResponse(raw string) (map[string]interface{}, error) {
	clean := ExtractJSON(raw)

	var params map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &params); err != nil {
		return nil, fmt.Errorf("failed to parse parameter JSON: %w", err)
	}
	return params, nil
}

// ParseTagResponse extracts a single classification label from LLM output.
// The label is lowercased and stripped of punctuation and quoting; callers
// coerce unknown labels to their own default.
func ParseTagResponse(raw string) string {
	label := strings.TrimSpace(raw)
	label = strings.Trim(label, "\"'`.,:;!")
	// A verbose model may answer "Tag: emotion" or similar; keep the last word.
	if fields := strings.Fields(label); len(fields) > 0 {
		label = fields[len(fields)-1]
	}
	return strings.ToLower(strings.Trim(label, "\"'`.,:;!"))
}
