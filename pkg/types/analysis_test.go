package types

import (
	"testing"
	"time"
)

// TestConsolidateThemes_MergeByName verifies that two themes with the same
// name merge: quotes concatenate, keywords union.
func TestConsolidateThemes_MergeByName(t *testing.T) {
	themes := []Theme{
		{Name: "X", Description: "first", Keywords: []string{"a"}, Quotes: []Quote{{Text: "q1"}}},
		{Name: "X", Description: "second", Keywords: []string{"a", "b"}, Quotes: []Quote{{Text: "q2"}}},
	}

	out := ConsolidateThemes(themes)
	if len(out) != 1 {
		t.Fatalf("expected 1 consolidated theme, got %d", len(out))
	}

	merged := out[0]
	if merged.Name != "X" {
		t.Errorf("expected name X, got %q", merged.Name)
	}
	if merged.Description != "first" {
		t.Errorf("first occurrence should keep its description, got %q", merged.Description)
	}
	if len(merged.Quotes) != 2 || merged.Quotes[0].Text != "q1" || merged.Quotes[1].Text != "q2" {
		t.Errorf("expected quotes [q1 q2], got %v", merged.Quotes)
	}
	if len(merged.Keywords) != 2 || merged.Keywords[0] != "a" || merged.Keywords[1] != "b" {
		t.Errorf("expected keywords [a b], got %v", merged.Keywords)
	}
}

// TestConsolidateThemes_PreservesOrder verifies first-seen name ordering and
// that unnamed themes are dropped.
func TestConsolidateThemes_PreservesOrder(t *testing.T) {
	themes := []Theme{
		{Name: "B"},
		{Name: ""},
		{Name: "A"},
		{Name: "B", Quotes: []Quote{{Text: "late"}}},
	}

	out := ConsolidateThemes(themes)
	if len(out) != 2 {
		t.Fatalf("expected 2 themes, got %d", len(out))
	}
	if out[0].Name != "B" || out[1].Name != "A" {
		t.Errorf("expected order [B A], got [%s %s]", out[0].Name, out[1].Name)
	}
	if len(out[0].Quotes) != 1 {
		t.Errorf("expected late quote merged into B, got %v", out[0].Quotes)
	}
}

// TestAnalysisState_MarkFinal verifies only the last step is mutated.
func TestAnalysisState_MarkFinal(t *testing.T) {
	state := &AnalysisState{}
	state.MarkFinal() // no steps: must not panic

	state.AppendStep(AnalysisStep{Timestamp: time.Now(), Analysis: "one"})
	state.AppendStep(AnalysisStep{Timestamp: time.Now(), Analysis: "two"})
	state.MarkFinal()

	if state.Steps[0].IsFinal {
		t.Error("first step must not be marked final")
	}
	if !state.Steps[1].IsFinal {
		t.Error("last step should be marked final")
	}
}

// TestAnalysisState_IsComplete covers the three termination conditions.
func TestAnalysisState_IsComplete(t *testing.T) {
	state := &AnalysisState{Parameters: AnalysisParameters{MaxToolCalls: 2}}
	if state.IsComplete() {
		t.Error("fresh state should not be complete")
	}

	state.AppendStep(AnalysisStep{Analysis: "plan"})
	if state.IsComplete() {
		t.Error("non-final step should not complete the run")
	}

	state.AppendToolResult(ToolInvocation{Tool: "generate_insight"})
	if state.IsComplete() {
		t.Error("budget not exhausted yet")
	}

	state.AppendToolResult(ToolInvocation{Tool: "sentiment_analysis"})
	if !state.IsComplete() {
		t.Error("budget exhausted: run should be complete")
	}

	errState := &AnalysisState{ToolError: "boom"}
	if !errState.IsComplete() {
		t.Error("tool error should complete the run")
	}

	finalState := &AnalysisState{}
	finalState.AppendStep(AnalysisStep{Analysis: "done", IsFinal: true})
	if !finalState.IsComplete() {
		t.Error("final step should complete the run")
	}
}

// TestEffectiveMaxToolCalls verifies the default budget.
func TestEffectiveMaxToolCalls(t *testing.T) {
	if got := (AnalysisParameters{}).EffectiveMaxToolCalls(); got != DefaultMaxToolCalls {
		t.Errorf("expected default %d, got %d", DefaultMaxToolCalls, got)
	}
	if got := (AnalysisParameters{MaxToolCalls: 7}).EffectiveMaxToolCalls(); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

// TestNormalizeMemoryTag verifies invalid labels coerce to other.
func TestNormalizeMemoryTag(t *testing.T) {
	if got := NormalizeMemoryTag("recommendation"); got != TagRecommendation {
		t.Errorf("expected recommendation, got %s", got)
	}
	if got := NormalizeMemoryTag("sparkly"); got != TagOther {
		t.Errorf("unknown label should coerce to other, got %s", got)
	}
	if got := NormalizeMemoryTag(""); got != TagOther {
		t.Errorf("empty label should coerce to other, got %s", got)
	}
}
