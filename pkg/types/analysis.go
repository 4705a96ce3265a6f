// Package types defines the core data structures for the QualAgents analysis
// system: text items, analysis state, themes, memories, and job records.
// The analysis state is threaded through the orchestrator loop with named,
// typed fields and well-defined append/update operations.
package types

import "time"

// TextItem is one unit of input text for an analysis run.
// Every item carries a document ID and filename; when the caller does not
// supply them, deterministic values are synthesized from the position index.
type TextItem struct {
	Text       string                 `json:"text"`                  // Raw text content
	DocumentID string                 `json:"document_id"`           // Stable document identifier
	Filename   string                 `json:"filename"`              // Display filename
	Metadata   map[string]interface{} `json:"metadata,omitempty"`    // Caller-supplied metadata
}

// AnalysisParameters holds the research objective and tunables for a run.
type AnalysisParameters struct {
	// ResearchObjective is the question driving the analysis.
	ResearchObjective string `json:"research_objective,omitempty"`

	// ThemeCount is the requested number of themes in the final report.
	ThemeCount int `json:"theme_count,omitempty"`

	// IncludeQuotes controls whether supporting quotes are attached to themes.
	IncludeQuotes bool `json:"include_quotes,omitempty"`

	// MaxToolCalls bounds the plan/execute loop. Zero means the default (3).
	MaxToolCalls int `json:"max_tool_calls,omitempty"`
}

// DefaultMaxToolCalls is the tool-call budget used when a run does not set one.
const DefaultMaxToolCalls = 3

// EffectiveMaxToolCalls returns the tool-call budget for the run.
func (p AnalysisParameters) EffectiveMaxToolCalls() int {
	if p.MaxToolCalls > 0 {
		return p.MaxToolCalls
	}
	return DefaultMaxToolCalls
}

// AnalysisStep records one planning turn of the orchestrator.
// Steps are append-only; only the last step's IsFinal flag is ever mutated.
type AnalysisStep struct {
	Timestamp time.Time `json:"timestamp"` // When the step was recorded
	Analysis  string    `json:"analysis"`  // Raw planning narrative from the LLM
	IsFinal   bool      `json:"is_final"`  // True marks loop termination
}

// ToolInvocation records one execution of a named tool with the exact
// parameters sent and the raw structured result returned.
// Immutable once appended.
type ToolInvocation struct {
	Timestamp time.Time              `json:"timestamp"`
	Tool      string                 `json:"tool"`
	Params    map[string]interface{} `json:"params"`
	Result    map[string]interface{} `json:"result"`
}

// AnalysisState is the single mutable object threaded through the analysis
// loop. It is exclusively owned by one orchestrator run; there is no
// concurrent mutation.
type AnalysisState struct {
	// Input is the normalized sequence of text items under analysis.
	Input []TextItem `json:"input"`

	// Parameters holds the research objective and tunables.
	Parameters AnalysisParameters `json:"parameters"`

	// ContextSummary is the optional condensed prior-memory text.
	// Derived, not authoritative.
	ContextSummary string `json:"context_summary,omitempty"`

	// Steps is the append-only sequence of planning turns.
	Steps []AnalysisStep `json:"steps"`

	// ToolResults is the append-only sequence of tool invocations.
	ToolResults []ToolInvocation `json:"tool_results"`

	// NextTool and ToolParams carry the current plan between the planning
	// and execution phases.
	NextTool   string                 `json:"next_tool,omitempty"`
	ToolParams map[string]interface{} `json:"tool_params,omitempty"`

	// CacheHit marks that the current plan was adopted from the planning
	// cache instead of a fresh LLM call.
	CacheHit bool `json:"cache_hit,omitempty"`

	// ToolError is the terminal error marker set when a tool invocation
	// fails. Prior steps and tool results stay untouched.
	ToolError string `json:"tool_error,omitempty"`

	// FinalReport is populated exactly once, at loop exit.
	FinalReport *FinalReport `json:"final_report,omitempty"`
}

// AppendStep appends a new planning step.
func (s *AnalysisState) AppendStep(step AnalysisStep) {
	s.Steps = append(s.Steps, step)
}

// AppendToolResult appends a tool invocation record.
func (s *AnalysisState) AppendToolResult(inv ToolInvocation) {
	s.ToolResults = append(s.ToolResults, inv)
}

// LastStep returns a pointer to the last step, or nil when there is none.
func (s *AnalysisState) LastStep() *AnalysisStep {
	if len(s.Steps) == 0 {
		return nil
	}
	return &s.Steps[len(s.Steps)-1]
}

// MarkFinal sets IsFinal on the last step. It is the only permitted mutation
// of an appended step. No-op when there are no steps.
func (s *AnalysisState) MarkFinal() {
	if last := s.LastStep(); last != nil {
		last.IsFinal = true
	}
}

// IsComplete reports whether the loop should terminate: the last step is
// marked final, a tool error was recorded, or the tool-call budget is
// exhausted.
func (s *AnalysisState) IsComplete() bool {
	if s.ToolError != "" {
		return true
	}
	if last := s.LastStep(); last != nil && last.IsFinal {
		return true
	}
	return len(s.ToolResults) >= s.Parameters.EffectiveMaxToolCalls()
}

// Quote is a supporting excerpt attached to a theme. The source, when
// present, traces back to a specific TextItem's document ID.
type Quote struct {
	Text   string       `json:"text"`
	Source *QuoteSource `json:"source,omitempty"`
}

// QuoteSource locates a quote within the original document corpus.
type QuoteSource struct {
	DocumentID string `json:"document_id,omitempty"`
	ChunkID    int    `json:"chunk_id,omitempty"`
	StartChar  int    `json:"start_char,omitempty"`
	EndChar    int    `json:"end_char,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Paragraph  int    `json:"paragraph,omitempty"`
}

// Theme is a named qualitative pattern consolidated from tool outputs.
// Name is the unique key within a report.
type Theme struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Quotes      []Quote  `json:"quotes,omitempty"`
}

// ConsolidateThemes merges themes by name: quotes concatenate in order
// (duplicates allowed), keywords union (duplicates removed). The first
// occurrence of a name keeps its description. Output preserves first-seen
// order of names.
func ConsolidateThemes(themes []Theme) []Theme {
	var order []string
	merged := make(map[string]*Theme)

	for _, t := range themes {
		if t.Name == "" {
			continue
		}
		existing, ok := merged[t.Name]
		if !ok {
			copied := t
			copied.Keywords = dedupeKeywords(nil, t.Keywords)
			merged[t.Name] = &copied
			order = append(order, t.Name)
			continue
		}
		existing.Quotes = append(existing.Quotes, t.Quotes...)
		existing.Keywords = dedupeKeywords(existing.Keywords, t.Keywords)
		if existing.Description == "" {
			existing.Description = t.Description
		}
	}

	out := make([]Theme, 0, len(order))
	for _, name := range order {
		out = append(out, *merged[name])
	}
	return out
}

// dedupeKeywords appends the keywords not already present in base.
func dedupeKeywords(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, k := range base {
		seen[k] = true
	}
	for _, k := range add {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		base = append(base, k)
	}
	return base
}

// ReportMetadata describes how a final report was produced.
type ReportMetadata struct {
	CompletedAt time.Time              `json:"completed_at"`
	Model       string                 `json:"model"`
	AgentConfig map[string]interface{} `json:"agent_config,omitempty"`
}

// FinalReport is the structured output of a completed analysis run.
// ToolError carries the terminal tool failure, if any; the rest of the
// report still reflects everything recorded before the failure.
type FinalReport struct {
	Summary     string           `json:"summary"`
	Themes      []Theme          `json:"themes"`
	Steps       []AnalysisStep   `json:"steps"`
	ToolResults []ToolInvocation `json:"tool_results"`
	ToolError   string           `json:"tool_error,omitempty"`
	Metadata    ReportMetadata   `json:"metadata"`
}

// AgentConfig is the persisted configuration of an analysis agent.
// It is constructed once per run and passed by reference into the
// orchestrator; tests swap in their own instances.
type AgentConfig struct {
	Name         string   `json:"name,omitempty" yaml:"name"`
	Model        string   `json:"model,omitempty" yaml:"model"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Temperature  float64  `json:"temperature,omitempty" yaml:"temperature"`
	Tools        []string `json:"tools,omitempty" yaml:"tools"`
	MaxToolCalls int      `json:"max_tool_calls,omitempty" yaml:"max_tool_calls"`
}
