package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualagents/qualagents/internal/cache"
	"github.com/qualagents/qualagents/internal/extractor"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/internal/tools"
	"github.com/qualagents/qualagents/pkg/types"
)

type fakeGenerator struct {
	responses []string
	err       error
	calls     int
}

func (g *fakeGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	i := g.calls - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

func (g *fakeGenerator) GetModel() string { return "fake-model" }

// memCacheStore is an in-memory CacheStore.
type memCacheStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{entries: make(map[string]string)}
}

func (m *memCacheStore) GetCacheEntry(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memCacheStore) SetCacheEntry(ctx context.Context, key, value string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memCacheStore) DeleteCacheEntry(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memCacheStore) CleanupExpired(ctx context.Context) (int, error) { return 0, nil }

// failingTool always errors.
type failingTool struct{}

func (failingTool) Name() tools.ToolName      { return tools.ToolGenerateInsight }
func (failingTool) Description() string       { return "always fails" }
func (failingTool) Schema() extractor.Schema  { return extractor.Schema{} }
func (failingTool) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.New("boom")
}

func insightRegistry(toolGen *fakeGenerator) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewGenerateInsight(toolGen))
	reg.Register(tools.NewThemeCluster(toolGen))
	return reg
}

func newOrchestrator(gen *fakeGenerator, reg *tools.Registry, c *cache.PlanningCache) *Orchestrator {
	return New(Config{
		Generator: gen,
		Registry:  reg,
		Extractor: extractor.New(nil, 0),
		Cache:     c,
		Agent:     types.AgentConfig{Name: "tester", Model: "fake-model"},
	})
}

func TestRunEmptyInput(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"should not be called"}}
	o := newOrchestrator(gen, insightRegistry(gen), nil)

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1}, nil, types.AnalysisParameters{})
	require.NoError(t, err)
	assert.Equal(t, noInputSummary, report.Summary)
	assert.Empty(t, report.Steps)
	assert.Zero(t, gen.calls)

	// Whitespace-only items count as empty.
	report, err = o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "   \n"}}, types.AnalysisParameters{})
	require.NoError(t, err)
	assert.Equal(t, noInputSummary, report.Summary)
}

func TestRunSingleText(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{
		"I will generate an insight from the transcript.",
		"Synthesis: users value simplicity.",
	}}
	toolGen := &fakeGenerator{responses: []string{
		`[{"theme": "Simplicity", "quote": "it just works", "summary": "valued for simplicity"}]`,
	}}
	o := newOrchestrator(planGen, insightRegistry(toolGen), nil)

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "interview transcript about simplicity"}},
		types.AnalysisParameters{MaxToolCalls: 1, IncludeQuotes: true})
	require.NoError(t, err)

	assert.Equal(t, "Synthesis: users value simplicity.", report.Summary)
	require.Len(t, report.Steps, 1)
	assert.True(t, report.Steps[0].IsFinal)
	require.Len(t, report.ToolResults, 1)
	assert.Equal(t, string(tools.ToolGenerateInsight), report.ToolResults[0].Tool)

	require.Len(t, report.Themes, 1)
	assert.Equal(t, "Simplicity", report.Themes[0].Name)
	require.Len(t, report.Themes[0].Quotes, 1)
	assert.Equal(t, "it just works", report.Themes[0].Quotes[0].Text)

	assert.Equal(t, "fake-model", report.Metadata.Model)
	assert.False(t, report.Metadata.CompletedAt.IsZero())
}

func TestRunQuotesStrippedByDefault(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{"generate an insight", "summary"}}
	toolGen := &fakeGenerator{responses: []string{
		`[{"theme": "Trust", "quote": "quoted text", "summary": "s"}]`,
	}}
	o := newOrchestrator(planGen, insightRegistry(toolGen), nil)

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "transcript"}},
		types.AnalysisParameters{MaxToolCalls: 1})
	require.NoError(t, err)
	require.Len(t, report.Themes, 1)
	assert.Empty(t, report.Themes[0].Quotes)
}

func TestRunBudgetForcesFinal(t *testing.T) {
	// The planner never volunteers to stop; the budget must close the loop.
	planGen := &fakeGenerator{responses: []string{
		"generate an insight",
		"generate another insight",
		"final synthesis",
	}}
	toolGen := &fakeGenerator{responses: []string{`[{"theme": "T", "summary": "s"}]`}}
	o := newOrchestrator(planGen, insightRegistry(toolGen), nil)

	state := &types.AnalysisState{
		Input:      NormalizeItems([]types.TextItem{{Text: "transcript"}}),
		Parameters: types.AnalysisParameters{MaxToolCalls: 2},
	}
	require.NoError(t, o.Execute(context.Background(), state, types.MemoryScope{ProjectID: 1}))

	assert.Len(t, state.ToolResults, 2)
	require.Len(t, state.Steps, 2)
	assert.False(t, state.Steps[0].IsFinal)
	assert.True(t, state.Steps[1].IsFinal)
	require.NotNil(t, state.FinalReport)
}

func TestRunDefaultBudget(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{"generate an insight"}}
	toolGen := &fakeGenerator{responses: []string{`[{"theme": "T", "summary": "s"}]`}}
	o := newOrchestrator(planGen, insightRegistry(toolGen), nil)

	state := &types.AnalysisState{
		Input: NormalizeItems([]types.TextItem{{Text: "transcript"}}),
	}
	require.NoError(t, o.Execute(context.Background(), state, types.MemoryScope{ProjectID: 1}))
	assert.Len(t, state.ToolResults, types.DefaultMaxToolCalls)
}

func TestRunToolErrorForcesCompletion(t *testing.T) {
	// A tool failure never propagates; the run completes with whatever was
	// recorded before the failure and the report carries the error marker.
	planGen := &fakeGenerator{responses: []string{"generate an insight"}}
	reg := tools.NewRegistry()
	reg.Register(failingTool{})
	o := newOrchestrator(planGen, reg, nil)

	state := &types.AnalysisState{
		Input:      NormalizeItems([]types.TextItem{{Text: "transcript"}}),
		Parameters: types.AnalysisParameters{MaxToolCalls: 3},
	}
	require.NoError(t, o.Execute(context.Background(), state, types.MemoryScope{ProjectID: 1}))

	// The failed invocation leaves prior appends intact and adds nothing.
	require.Len(t, state.Steps, 1)
	assert.True(t, state.Steps[0].IsFinal)
	assert.Empty(t, state.ToolResults)
	assert.Contains(t, state.ToolError, "boom")

	require.NotNil(t, state.FinalReport)
	assert.Contains(t, state.FinalReport.ToolError, "boom")
	assert.Empty(t, state.FinalReport.ToolResults)
	assert.NotEmpty(t, state.FinalReport.Summary)
}

func TestRunToolErrorNotPropagatedByRun(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{"generate an insight"}}
	reg := tools.NewRegistry()
	reg.Register(failingTool{})
	o := newOrchestrator(planGen, reg, nil)

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "transcript"}}, types.AnalysisParameters{MaxToolCalls: 3})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Contains(t, report.ToolError, "boom")
}

func TestRunUnknownToolForcesCompletion(t *testing.T) {
	// A registry without the inferred tool makes resolution fail.
	planGen := &fakeGenerator{responses: []string{"analyze the sentiment here"}}
	o := newOrchestrator(planGen, tools.NewRegistry(), nil)

	state := &types.AnalysisState{
		Input:      NormalizeItems([]types.TextItem{{Text: "transcript"}}),
		Parameters: types.AnalysisParameters{MaxToolCalls: 2},
	}
	require.NoError(t, o.Execute(context.Background(), state, types.MemoryScope{ProjectID: 1}))
	assert.Len(t, state.Steps, 1)
	assert.Empty(t, state.ToolResults)
	require.NotNil(t, state.FinalReport)
	assert.Contains(t, state.FinalReport.ToolError, "unknown tool")
}

func TestRunPlanningCache(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{
		"generate an insight", // first run: plan
		"synthesis one",       // first run: synthesis
		"synthesis two",       // second run: synthesis only, plan comes from cache
	}}
	toolGen := &fakeGenerator{responses: []string{`[{"theme": "T", "summary": "s"}]`}}
	c := cache.New(newMemCacheStore(), true, time.Hour)
	o := newOrchestrator(planGen, insightRegistry(toolGen), c)

	input := NormalizeItems([]types.TextItem{{Text: "identical transcript"}})
	params := types.AnalysisParameters{MaxToolCalls: 1, ResearchObjective: "objective"}

	first := &types.AnalysisState{Input: input, Parameters: params}
	require.NoError(t, o.Execute(context.Background(), first, types.MemoryScope{ProjectID: 1}))
	assert.False(t, first.CacheHit)

	second := &types.AnalysisState{Input: input, Parameters: params}
	require.NoError(t, o.Execute(context.Background(), second, types.MemoryScope{ProjectID: 1}))
	assert.True(t, second.CacheHit)

	// Plan once, synthesize twice.
	assert.Equal(t, 3, planGen.calls)
	assert.Equal(t, first.Steps[0].Analysis, second.Steps[0].Analysis)
}

func TestRunPlanningCacheAdoptsFullPlan(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{
		"generate an insight", // first run: plan
		"synthesis one",       // first run: synthesis
		"synthesis two",       // second run: synthesis only
	}}
	extractGen := &fakeGenerator{responses: []string{`{"text": "narrative", "approach": "narrative"}`}}
	toolGen := &fakeGenerator{responses: []string{`[{"theme": "T", "summary": "s"}]`}}
	c := cache.New(newMemCacheStore(), true, time.Hour)
	o := New(Config{
		Generator: planGen,
		Registry:  insightRegistry(toolGen),
		Extractor: extractor.New(extractGen, 0),
		Cache:     c,
		Agent:     types.AgentConfig{Name: "tester"},
	})

	input := NormalizeItems([]types.TextItem{{Text: "identical transcript"}})
	params := types.AnalysisParameters{MaxToolCalls: 1, ResearchObjective: "objective"}

	first := &types.AnalysisState{Input: input, Parameters: params}
	require.NoError(t, o.Execute(context.Background(), first, types.MemoryScope{ProjectID: 1}))
	extractionCalls := extractGen.calls
	assert.Positive(t, extractionCalls)

	// The hit adopts tool choice and extracted parameters without another
	// extraction call; context parameters are still injected per run.
	second := &types.AnalysisState{Input: input, Parameters: params}
	require.NoError(t, o.Execute(context.Background(), second, types.MemoryScope{ProjectID: 1}))
	assert.True(t, second.CacheHit)
	assert.Equal(t, extractionCalls, extractGen.calls)
	assert.Equal(t, string(tools.ToolGenerateInsight), second.NextTool)
	assert.Equal(t, "narrative", second.ToolParams["approach"])
	assert.Equal(t, "identical transcript", second.ToolParams["text"])
}

func TestRunThemeClusterInference(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{
		"I will cluster the statements into themes.",
		"synthesis",
	}}
	toolGen := &fakeGenerator{responses: []string{`[
		{"theme": "Onboarding", "description": "setup", "excerpts": ["setup was easy"]},
		{"theme": "Pricing", "description": "cost", "excerpts": ["too expensive"]}
	]`}}
	o := newOrchestrator(planGen, insightRegistry(toolGen), nil)

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "setup was easy"}, {Text: "too expensive"}},
		types.AnalysisParameters{MaxToolCalls: 1, IncludeQuotes: true})
	require.NoError(t, err)

	require.Len(t, report.ToolResults, 1)
	assert.Equal(t, string(tools.ToolThemeCluster), report.ToolResults[0].Tool)
	require.Len(t, report.Themes, 2)
	assert.Equal(t, "Onboarding", report.Themes[0].Name)
	assert.Equal(t, []types.Quote{{Text: "setup was easy"}}, report.Themes[0].Quotes)
}

func TestRunThemeCountCap(t *testing.T) {
	planGen := &fakeGenerator{responses: []string{"cluster the statements", "synthesis"}}
	toolGen := &fakeGenerator{responses: []string{`[
		{"theme": "A", "excerpts": ["one"]},
		{"theme": "B", "excerpts": ["two"]},
		{"theme": "C", "excerpts": ["three"]}
	]`}}
	o := newOrchestrator(planGen, insightRegistry(toolGen), nil)

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "one"}, {Text: "two"}, {Text: "three"}},
		types.AnalysisParameters{MaxToolCalls: 1, ThemeCount: 2})
	require.NoError(t, err)
	assert.Len(t, report.Themes, 2)
}

func TestRunSynthesisFallback(t *testing.T) {
	// The planner works, but synthesis fails; the report gets the
	// deterministic fallback summary instead of an error.
	planGen := &fakeGenerator{responses: []string{"generate an insight"}}
	toolGen := &fakeGenerator{responses: []string{`[{"theme": "T", "summary": "s"}]`}}

	reg := insightRegistry(toolGen)
	o := New(Config{
		Generator: &failAfterGenerator{inner: planGen, failAfter: 1},
		Registry:  reg,
		Extractor: extractor.New(nil, 0),
		Agent:     types.AgentConfig{},
	})

	report, err := o.Run(context.Background(), types.MemoryScope{ProjectID: 1},
		[]types.TextItem{{Text: "transcript"}}, types.AnalysisParameters{MaxToolCalls: 1})
	require.NoError(t, err)
	assert.Contains(t, report.Summary, "1 tool invocations")
	assert.Contains(t, report.Summary, "generate_insight")
}

// failAfterGenerator succeeds for the first n calls, then errors.
type failAfterGenerator struct {
	inner     *fakeGenerator
	failAfter int
	calls     int
}

func (g *failAfterGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	if g.calls > g.failAfter {
		return "", errors.New("provider down")
	}
	return g.inner.Complete(ctx, systemPrompt, userPrompt)
}

func (g *failAfterGenerator) GetModel() string { return "failing" }
