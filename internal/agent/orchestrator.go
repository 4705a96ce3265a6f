// Package agent implements the analysis orchestrator: a plan/execute loop
// over an AnalysisState that alternates LLM planning turns with tool
// invocations until the run is marked final, errors out, or exhausts its
// tool-call budget, then synthesizes a final report.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/qualagents/qualagents/internal/cache"
	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/internal/memory"
	"github.com/qualagents/qualagents/internal/tools"
	"github.com/qualagents/qualagents/pkg/types"
)

const (
	// cacheExcerptLimit bounds how much input text feeds the plan cache key.
	cacheExcerptLimit = 1000

	// digestLimit bounds each step and result digest in the synthesis prompt.
	digestLimit = 500

	// noInputSummary is the report summary for an empty input set.
	noInputSummary = "No input text provided for analysis."
)

// Config wires the orchestrator's collaborators.
type Config struct {
	Generator llm.TextGenerator
	Registry  *tools.Registry
	Extractor *extractor.ParameterExtractor
	Cache     *cache.PlanningCache
	Memory    *memory.Pipeline
	Agent     types.AgentConfig
}

// Orchestrator runs analyses. One orchestrator may serve many runs; all
// per-run state lives in the AnalysisState.
type Orchestrator struct {
	generator llm.TextGenerator
	registry  *tools.Registry
	extractor *extractor.ParameterExtractor
	cache     *cache.PlanningCache
	memories  *memory.Pipeline
	agent     types.AgentConfig
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		generator: cfg.Generator,
		registry:  cfg.Registry,
		extractor: cfg.Extractor,
		cache:     cfg.Cache,
		memories:  cfg.Memory,
		agent:     cfg.Agent,
	}
}

// Run executes a full analysis over input and returns the final report.
// A tool failure forces completion instead of propagating: the report still
// synthesizes everything recorded up to the failure and carries the error
// marker in its ToolError field.
func (o *Orchestrator) Run(ctx context.Context, scope types.MemoryScope, input []types.TextItem, params types.AnalysisParameters) (*types.FinalReport, error) {
	state := &types.AnalysisState{
		Input:      NormalizeItems(input),
		Parameters: params,
	}
	if o.agent.MaxToolCalls > 0 && state.Parameters.MaxToolCalls == 0 {
		state.Parameters.MaxToolCalls = o.agent.MaxToolCalls
	}
	if err := o.Execute(ctx, state, scope); err != nil {
		return nil, err
	}
	return state.FinalReport, nil
}

// Execute drives the loop on a caller-provided state.
func (o *Orchestrator) Execute(ctx context.Context, state *types.AnalysisState, scope types.MemoryScope) error {
	if len(nonEmptyTexts(state.Input)) == 0 {
		state.FinalReport = &types.FinalReport{
			Summary:  noInputSummary,
			Themes:   []types.Theme{},
			Metadata: o.reportMetadata(),
		}
		return nil
	}

	o.preprocess(ctx, state, scope)

	for !state.IsComplete() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("agent: run cancelled: %w", err)
		}

		if err := o.plan(ctx, state, scope); err != nil {
			return err
		}
		o.executeTool(ctx, state, scope)

		// The budgeted final call closes the loop explicitly.
		if state.ToolError == "" && len(state.ToolResults) >= state.Parameters.EffectiveMaxToolCalls() {
			state.MarkFinal()
		}
	}

	if state.ToolError != "" {
		log.Printf("agent: completing with partial results after tool failure: %s", state.ToolError)
		state.MarkFinal()
	}

	o.postprocess(ctx, state)

	if o.memories != nil && state.FinalReport != nil {
		if err := o.memories.PersistFindings(ctx, scope, state.FinalReport); err != nil {
			log.Printf("agent: failed to persist findings: %v", err)
		}
	}
	return nil
}

// preprocess attaches prior-analysis context to the state.
func (o *Orchestrator) preprocess(ctx context.Context, state *types.AnalysisState, scope types.MemoryScope) {
	if o.memories == nil {
		return
	}
	query := state.Parameters.ResearchObjective
	if query == "" {
		query = llm.Truncate(combinedText(state.Input), cacheExcerptLimit)
	}
	state.ContextSummary = o.memories.ContextForAnalysis(ctx, scope, query)
}

// cachedPlan is the serialized form of a planning turn: the narrative plus
// the tool choice and its extracted parameters. Context parameters (scope,
// input text, memories) are injected per run and never cached.
type cachedPlan struct {
	Analysis   string                 `json:"analysis"`
	NextTool   string                 `json:"next_tool"`
	ToolParams map[string]interface{} `json:"tool_params"`
}

// plan runs one planning turn: obtain the plan (from cache or the LLM),
// record its narrative as a step, and stage the next tool and parameters.
// A cache hit adopts the whole plan and skips both the planning and the
// extraction calls.
func (o *Orchestrator) plan(ctx context.Context, state *types.AnalysisState, scope types.MemoryScope) error {
	combined := combinedText(state.Input)
	key := o.planCacheKey(state, combined)

	if o.cache != nil {
		if raw, ok := o.cache.Get(ctx, key); ok {
			var cached cachedPlan
			if err := json.Unmarshal([]byte(raw), &cached); err == nil && cached.NextTool != "" {
				state.CacheHit = true
				state.AppendStep(types.AnalysisStep{Timestamp: time.Now(), Analysis: cached.Analysis})
				state.NextTool = cached.NextTool
				state.ToolParams = o.injectContext(ctx, state, scope, tools.ToolName(cached.NextTool), cached.ToolParams)
				return nil
			}
			log.Printf("agent: discarding unreadable cached plan")
		}
	}

	systemPrompt := o.agent.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = llm.DefaultPlanningSystemPrompt
	}
	analysis, err := o.generator.Complete(ctx, systemPrompt,
		llm.PlanningPrompt(state.Parameters.ResearchObjective, state.ContextSummary, combined))
	if err != nil {
		return fmt.Errorf("agent: planning failed: %w", err)
	}

	state.AppendStep(types.AnalysisStep{Timestamp: time.Now(), Analysis: analysis})

	tool := tools.InferTool(analysis)
	extracted := o.extractParams(ctx, tool, analysis, combined)
	state.NextTool = string(tool)
	state.ToolParams = o.injectContext(ctx, state, scope, tool, extracted)

	if o.cache != nil {
		if data, err := json.Marshal(cachedPlan{Analysis: analysis, NextTool: state.NextTool, ToolParams: extracted}); err == nil {
			o.cache.Set(ctx, key, string(data))
		}
	}
	return nil
}

// planCacheKey builds the deterministic cache key for a planning call.
func (o *Orchestrator) planCacheKey(state *types.AnalysisState, combined string) string {
	configJSON, _ := json.Marshal(o.agent)
	return cache.GenerateKey(map[string]interface{}{
		"purpose":            "analysis_plan",
		"input_hash":         cache.HashText(llm.Truncate(combined, cacheExcerptLimit)),
		"research_objective": state.Parameters.ResearchObjective,
		"agent_config_hash":  cache.HashText(string(configJSON)),
	})
}

// extractParams pulls the tool's extractable fields out of the planning
// narrative, merged over the per-tool defaults derived from the input text.
func (o *Orchestrator) extractParams(ctx context.Context, tool tools.ToolName, analysis, combined string) map[string]interface{} {
	params := map[string]interface{}{}
	if t, err := o.registry.Get(tool); err == nil && o.extractor != nil {
		if schema := t.Schema(); len(schema.Fields) > 0 {
			extracted, ok := o.extractor.Extract(ctx, analysis, schema, tools.DefaultParams(tool, combined))
			if !ok {
				log.Printf("agent: parameter extraction degraded to defaults for %s", tool)
			}
			for k, v := range extracted {
				params[k] = v
			}
		}
	}
	return params
}

// injectContext completes the parameter map with context fields the tool
// needs from this run: input text, scope identifiers, and retrieved
// memories. These are deterministic and never come from extraction.
func (o *Orchestrator) injectContext(ctx context.Context, state *types.AnalysisState, scope types.MemoryScope, tool tools.ToolName, extracted map[string]interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(extracted)+4)
	for k, v := range extracted {
		params[k] = v
	}

	combined := combinedText(state.Input)
	switch tool {
	case tools.ToolDocumentSearch:
		if q, _ := params["query"].(string); q == "" {
			params["query"] = state.Parameters.ResearchObjective
		}
		params["project_id"] = scope.ProjectID
		params["agent_id"] = scope.AgentID
		params["analysis_id"] = scope.AnalysisID

	case tools.ToolGenerateInsight, tools.ToolSentimentAnalysis:
		// The tool analyzes the input corpus, not the planning narrative.
		params["text"] = combined
		if len(state.Input) == 1 {
			params["document_id"] = state.Input[0].DocumentID
			params["filename"] = state.Input[0].Filename
		}

	case tools.ToolThemeCluster:
		params["excerpts"] = nonEmptyTexts(state.Input)

	case tools.ToolSummarizeMemory:
		query := state.Parameters.ResearchObjective
		if query == "" {
			query = llm.Truncate(combined, cacheExcerptLimit)
		}
		if o.memories != nil {
			params["memories"] = o.memories.Retrieve(ctx, scope, query, 10)
		}

	case tools.ToolLLMRouter:
		if q, _ := params["query"].(string); q == "" {
			params["query"] = state.Parameters.ResearchObjective
		}
	}
	return params
}

// executeTool invokes the planned tool. Failures set the terminal ToolError
// marker; prior steps and tool results stay untouched.
func (o *Orchestrator) executeTool(ctx context.Context, state *types.AnalysisState, scope types.MemoryScope) {
	name := tools.ToolName(state.NextTool)
	tool, err := o.registry.Get(name)
	if err != nil {
		state.ToolError = err.Error()
		return
	}

	result, err := tool.Execute(ctx, state.ToolParams)
	if err != nil {
		state.ToolError = fmt.Sprintf("tool %s failed: %v", name, err)
		return
	}

	state.AppendToolResult(types.ToolInvocation{
		Timestamp: time.Now(),
		Tool:      string(name),
		Params:    state.ToolParams,
		Result:    result,
	})
}

// postprocess synthesizes the final report: an LLM summary over digests of
// the run, plus themes consolidated deterministically from tool results.
func (o *Orchestrator) postprocess(ctx context.Context, state *types.AnalysisState) {
	summary, err := o.generator.Complete(ctx, llm.SynthesisSystemPrompt,
		llm.SynthesisPrompt(state.Parameters.ResearchObjective, stepsDigest(state.Steps), resultsDigest(state.ToolResults)))
	if err != nil {
		log.Printf("agent: synthesis failed, using fallback summary: %v", err)
		summary = fallbackSummary(state)
	}

	themes := types.ConsolidateThemes(collectThemes(state.ToolResults))
	if !state.Parameters.IncludeQuotes {
		for i := range themes {
			themes[i].Quotes = nil
		}
	}
	if n := state.Parameters.ThemeCount; n > 0 && len(themes) > n {
		themes = themes[:n]
	}

	state.FinalReport = &types.FinalReport{
		Summary:     strings.TrimSpace(summary),
		Themes:      themes,
		Steps:       state.Steps,
		ToolResults: state.ToolResults,
		ToolError:   state.ToolError,
		Metadata:    o.reportMetadata(),
	}
}

func (o *Orchestrator) reportMetadata() types.ReportMetadata {
	md := types.ReportMetadata{CompletedAt: time.Now()}
	if o.generator != nil {
		md.Model = o.generator.GetModel()
	}
	if o.agent.Name != "" || o.agent.Model != "" {
		md.AgentConfig = map[string]interface{}{
			"name":  o.agent.Name,
			"model": o.agent.Model,
		}
	}
	return md
}

// collectThemes lifts themes out of insight and cluster tool results.
func collectThemes(results []types.ToolInvocation) []types.Theme {
	var themes []types.Theme
	for _, inv := range results {
		switch tools.ToolName(inv.Tool) {
		case tools.ToolGenerateInsight:
			for _, item := range resultItems(inv.Result, "insights") {
				theme := types.Theme{
					Name:        stringField(item, "theme"),
					Description: stringField(item, "summary"),
				}
				if quote := stringField(item, "quote"); quote != "" {
					q := types.Quote{Text: quote}
					if src, ok := item["source"].(map[string]interface{}); ok {
						q.Source = &types.QuoteSource{
							DocumentID: stringField(src, "document_id"),
							Filename:   stringField(src, "filename"),
						}
					}
					theme.Quotes = []types.Quote{q}
				}
				themes = append(themes, theme)
			}
		case tools.ToolThemeCluster:
			for _, item := range resultItems(inv.Result, "clusters") {
				theme := types.Theme{
					Name:        stringField(item, "theme"),
					Description: stringField(item, "description"),
				}
				switch excerpts := item["excerpts"].(type) {
				case []string:
					for _, e := range excerpts {
						theme.Quotes = append(theme.Quotes, types.Quote{Text: e})
					}
				case []interface{}:
					for _, e := range excerpts {
						if s, ok := e.(string); ok {
							theme.Quotes = append(theme.Quotes, types.Quote{Text: s})
						}
					}
				}
				themes = append(themes, theme)
			}
		}
	}
	return themes
}

// resultItems reads a list-of-maps field from a tool result, accepting both
// the in-process and the JSON-decoded representations.
func resultItems(result map[string]interface{}, key string) []map[string]interface{} {
	switch v := result[key].(type) {
	case []map[string]interface{}:
		return v
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// stepsDigest formats the planning steps for the synthesis prompt, each
// bounded to the digest limit.
func stepsDigest(steps []types.AnalysisStep) string {
	if len(steps) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&b, "Step %d: %s\n", i+1, llm.Truncate(step.Analysis, digestLimit))
	}
	return b.String()
}

// resultsDigest formats the tool results for the synthesis prompt.
func resultsDigest(results []types.ToolInvocation) string {
	if len(results) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, inv := range results {
		data, err := json.Marshal(inv.Result)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", inv.Result))
		}
		fmt.Fprintf(&b, "Result %d (%s): %s\n", i+1, inv.Tool, llm.Truncate(string(data), digestLimit))
	}
	return b.String()
}

// fallbackSummary is the deterministic summary used when synthesis fails.
func fallbackSummary(state *types.AnalysisState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis completed with %d planning steps and %d tool invocations.",
		len(state.Steps), len(state.ToolResults))
	if names := toolNames(state.ToolResults); len(names) > 0 {
		fmt.Fprintf(&b, " Tools used: %s.", strings.Join(names, ", "))
	}
	return b.String()
}

func toolNames(results []types.ToolInvocation) []string {
	seen := make(map[string]bool)
	var names []string
	for _, inv := range results {
		if !seen[inv.Tool] {
			seen[inv.Tool] = true
			names = append(names, inv.Tool)
		}
	}
	return names
}

func combinedText(items []types.TextItem) string {
	return strings.Join(nonEmptyTexts(items), "\n\n")
}

func nonEmptyTexts(items []types.TextItem) []string {
	var out []string
	for _, item := range items {
		if strings.TrimSpace(item.Text) != "" {
			out = append(out, item.Text)
		}
	}
	return out
}
