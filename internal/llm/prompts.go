package llm

import (
	"fmt"
	"strings"
)

// DefaultPlanningSystemPrompt is used when the agent configuration does not
// supply its own system prompt.
const DefaultPlanningSystemPrompt = "You are a qualitative research expert. Analyze the provided data and identify key themes."

// SynthesisSystemPrompt frames the final report synthesis call.
const SynthesisSystemPrompt = "You are a qualitative research expert specializing in synthesizing findings."

// planningExcerptLimit bounds the input excerpt included in the planning prompt.
const planningExcerptLimit = 4000

// PlanningPrompt builds the user prompt for the plan step: the research
// objective, optional prior-analysis context, and a size-bounded excerpt of
// the combined input text.
func PlanningPrompt(researchObjective, contextSummary, combinedText string) string {
	if researchObjective == "" {
		researchObjective = "Identify key themes and insights"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Research Objective: %s\n\n", researchObjective)

	if contextSummary != "" {
		fmt.Fprintf(&b, "CONTEXT FROM PREVIOUS ANALYSES:\n%s\n\nConsider this context when analyzing the new data. Build upon these insights.\n\n", contextSummary)
	}

	fmt.Fprintf(&b, "Data to analyze:\n%s\n\n", Truncate(combinedText, planningExcerptLimit))

	b.WriteString(`Please analyze this data and determine what analysis steps would be most helpful.
You have access to the following tools:
- document_search: Search through documents for relevant information
- generate_insight: Extract structured insights from text
- sentiment_analysis: Analyze emotional tone of text
- theme_cluster: Cluster related concepts from statements

Explain your proposed analysis approach and which tool to use first.`)

	return b.String()
}

// SynthesisPrompt builds the postprocessing prompt from formatted digests of
// the analysis steps and tool results.
func SynthesisPrompt(researchObjective, stepsDigest, resultsDigest string) string {
	if researchObjective == "" {
		researchObjective = "Identify key themes and insights"
	}
	return fmt.Sprintf(`Synthesize the following analysis steps and tool results into a coherent summary.

Research Objective: %s

Analysis Steps:
%s

Tool Results:
%s

Create a structured summary with:
1. Key Themes: The main themes identified in the data
2. Notable Insights: Specific insights derived from the data
3. Evidence: Supporting quotes or data points
4. Recommendations: Suggested actions or further research

Format your response as clear sections with headings.`, researchObjective, stepsDigest, resultsDigest)
}

// insightSystemPrompts maps analytical approaches to system prompts.
var insightSystemPrompts = map[string]string{
	"thematic":         "You are an expert qualitative researcher using thematic analysis. Extract key themes from the text.",
	"grounded_theory":  "You are an expert in grounded theory. Code the data and identify emerging theories.",
	"phenomenological": "You are a phenomenological researcher. Identify the lived experiences and their essence.",
	"narrative":        "You are a narrative analyst. Extract key stories and their meanings.",
	"discourse":        "You are a discourse analyst. Identify language patterns and their social implications.",
}

// InsightSystemPrompt returns the system prompt for the given analytical
// approach, defaulting to thematic analysis for unknown approaches.
func InsightSystemPrompt(approach string) string {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(approach), " ", "_"))
	if p, ok := insightSystemPrompts[key]; ok {
		return p
	}
	return insightSystemPrompts["thematic"]
}

// InsightPrompt builds the user prompt for structured insight extraction.
func InsightPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following qualitative text and extract key insights.

Text: %s

For each insight:
1. Identify a clear theme or concept
2. Extract a relevant quote from the text
3. Write a brief summary of the insight

Format your response as a JSON array of objects with keys:
- theme: The identified theme or concept
- quote: A representative quote
- summary: Brief explanation of the insight

Return only valid JSON without any additional text.
Aim to provide 3-5 high-quality insights.`, text)
}

// SentimentSystemPrompt instructs strict JSON sentiment classification.
const SentimentSystemPrompt = `You are an expert in sentiment analysis. Analyze the emotional tone of the provided text.
Classify it as "positive", "negative", or "neutral" with a confidence score from 0.0 to 1.0.

Reply with a JSON object containing:
- sentiment: "positive", "negative", or "neutral"
- confidence: a float between 0.0 and 1.0

Only include this JSON object in your response, nothing else.`

// ClusterSystemPrompt instructs strict JSON theme clustering.
const ClusterSystemPrompt = `You are a qualitative research expert specializing in thematic analysis.
Your task is to identify conceptual themes from a set of excerpts and cluster them accordingly.

Output only a JSON array of cluster objects, each containing:
- theme: A clear name for the theme
- description: A brief description of the theme
- excerpts: An array of excerpts that belong to this theme (use exact texts from the input)

Guidelines:
- Create 3-7 themes depending on the data
- Each excerpt can belong to only one theme
- All excerpts should be assigned to a theme
- Choose theme names that are concise and descriptive

Return only valid JSON without any additional text.`

// ClusterPrompt builds the user prompt for theme clustering.
func ClusterPrompt(excerpts []string) string {
	var b strings.Builder
	b.WriteString("Please cluster these excerpts into meaningful themes:\n\n")
	for _, e := range excerpts {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	return b.String()
}

// RouterSystemPrompt builds the routing system prompt from a tool catalog
// description.
func RouterSystemPrompt(toolsDescription string) string {
	return fmt.Sprintf(`You are an expert system that routes user queries to the appropriate tool.

Available tools:
%s

Based on the user's query, determine which tool would be most helpful.

Reply with a JSON object containing:
- tool: The name of the suggested tool (must be one from the list above)
- rationale: A brief explanation of why this tool is appropriate

Only include this JSON object in your response, nothing else.`, toolsDescription)
}

// MemorySummarySystemPrompt frames memory summarization.
const MemorySummarySystemPrompt = "You are an AI assistant that summarizes information concisely and accurately."

// MemorySummaryPrompt builds the user prompt for summarizing a formatted
// block of memories.
func MemorySummaryPrompt(memoryText string) string {
	return fmt.Sprintf(`You are tasked with summarizing the following agent memories into a concise, context-relevant summary.

MEMORIES:
%s

INSTRUCTIONS:
1. Focus on the most relevant memories (highest relevance score or tagged as 'insight', 'barrier', or 'theme')
2. Group similar memories when possible
3. Do not include direct quotes, just themes and main points
4. Create a concise summary between 50-100 words
5. Focus on extracting the most important insights, patterns, and concepts

Your summary should be informative, neutral, and focus on key information that would be most useful for contextual understanding.`, memoryText)
}

// ShorterSummaryPrompt asks for a condensed rewrite of an over-long summary.
func ShorterSummaryPrompt(summary string) string {
	return fmt.Sprintf("Please create a shorter version of this summary (50-100 words max):\n\n%s", summary)
}

// TagSystemPrompt instructs single-label memory classification.
const TagSystemPrompt = `You classify short research memories into exactly one category.
Valid categories: observation, emotion, recommendation, complaint, idea, other.
Reply with ONLY the single category word. No punctuation, no explanation.`

// TagPrompt builds the user prompt for memory tagging.
func TagPrompt(text string) string {
	return fmt.Sprintf("Classify this memory:\n\n%s", text)
}

// ExtractionSystemPrompt builds the system prompt for structured parameter
// extraction against a field contract description.
func ExtractionSystemPrompt(schemaDescription string) string {
	return fmt.Sprintf(`Extract structured parameters from the provided text.
Follow these rules:
1. Be strict about required fields
2. Infer missing values when logical
3. Return ONLY valid JSON matching the schema

Schema: %s`, schemaDescription)
}

// Truncate returns s cut to at most n bytes. Helper shared by prompt
// builders and digest formatting.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
