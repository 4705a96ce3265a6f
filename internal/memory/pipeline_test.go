package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualagents/qualagents/internal/storage"
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

func (g *fakeGenerator) GetModel() string { return "fake" }

type fakeStore struct {
	stored  []*types.MemoryRecord
	results []types.ScoredMemory
	err     error
	vector  bool
}

func (s *fakeStore) StoreMemory(ctx context.Context, m *types.MemoryRecord) error {
	s.stored = append(s.stored, m)
	return s.err
}
func (s *fakeStore) GetMemory(ctx context.Context, id string) (*types.MemoryRecord, error) {
	return nil, storage.ErrNotFound
}
func (s *fakeStore) SearchMemories(ctx context.Context, q storage.SearchQuery) ([]types.ScoredMemory, error) {
	return s.results, s.err
}
func (s *fakeStore) ListMemories(ctx context.Context, scope types.MemoryScope, limit int) ([]*types.MemoryRecord, error) {
	return nil, nil
}
func (s *fakeStore) DeleteMemories(ctx context.Context, scope types.MemoryScope) (int, error) {
	return 0, nil
}
func (s *fakeStore) VectorSearchAvailable() bool { return s.vector }
func (s *fakeStore) Close() error                { return nil }

func scored(text string, score float64, tag types.MemoryTag) types.ScoredMemory {
	return types.ScoredMemory{
		MemoryRecord: types.MemoryRecord{ID: "id-" + text, Text: text, ProjectID: 1, Tag: tag},
		Score:        score,
	}
}

func TestContextForAnalysisEmpty(t *testing.T) {
	p := New(&fakeStore{}, &fakeGenerator{}, nil)
	got := p.ContextForAnalysis(context.Background(), types.MemoryScope{ProjectID: 1}, "objective")
	assert.Empty(t, got)
}

func TestContextForAnalysisSingleMemory(t *testing.T) {
	// A lone prior finding is not enough signal to build planning context.
	store := &fakeStore{results: []types.ScoredMemory{scored("only one prior finding", 0.8, "")}}
	gen := &fakeGenerator{responses: []string{"should not be called"}}
	p := New(store, gen, nil)

	got := p.ContextForAnalysis(context.Background(), types.MemoryScope{ProjectID: 1}, "objective")
	assert.Empty(t, got)
	assert.Zero(t, gen.calls)
}

func TestContextForAnalysisSummarizes(t *testing.T) {
	store := &fakeStore{results: []types.ScoredMemory{
		scored("finding one", 0.9, ""),
		scored("finding two", 0.8, ""),
	}}
	gen := &fakeGenerator{responses: []string{"Condensed context from prior analyses."}}
	p := New(store, gen, nil)

	got := p.ContextForAnalysis(context.Background(), types.MemoryScope{ProjectID: 1}, "objective")
	assert.Equal(t, "Condensed context from prior analyses.", got)
	assert.GreaterOrEqual(t, gen.calls, 1)
}

func TestContextForAnalysisSwallowsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	p := New(store, &fakeGenerator{}, nil)
	got := p.ContextForAnalysis(context.Background(), types.MemoryScope{ProjectID: 1}, "objective")
	assert.Empty(t, got)
}

func TestTruncateSummary(t *testing.T) {
	t.Run("short untouched", func(t *testing.T) {
		assert.Equal(t, "short summary.", TruncateSummary("short summary."))
	})

	t.Run("long cut to five sentences", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 12; i++ {
			fmt.Fprintf(&b, "This sentence number %d carries about ten words of padded filler content. ", i)
		}
		got := TruncateSummary(b.String())
		assert.Equal(t, 5, strings.Count(got, "."))
		assert.True(t, strings.HasPrefix(got, "This sentence number 0"))
	})
}

func TestTagText(t *testing.T) {
	t.Run("valid label", func(t *testing.T) {
		p := New(nil, &fakeGenerator{responses: []string{"emotion"}}, nil)
		assert.Equal(t, types.TagEmotion, p.TagText(context.Background(), "I felt frustrated"))
	})

	t.Run("unknown label coerces to other", func(t *testing.T) {
		p := New(nil, &fakeGenerator{responses: []string{"miscellaneous"}}, nil)
		assert.Equal(t, types.TagOther, p.TagText(context.Background(), "something"))
	})

	t.Run("generator failure coerces to other", func(t *testing.T) {
		p := New(nil, &fakeGenerator{err: errors.New("down")}, nil)
		assert.Equal(t, types.TagOther, p.TagText(context.Background(), "something"))
	})
}

func TestEnsureTagged(t *testing.T) {
	store := &fakeStore{}
	p := New(store, &fakeGenerator{responses: []string{"idea"}}, nil)

	rec := &types.MemoryRecord{ID: "m1", Text: "we could add exports", ProjectID: 1}
	require.NoError(t, p.EnsureTagged(context.Background(), rec))
	assert.Equal(t, types.TagIdea, rec.Tag)
	require.Len(t, store.stored, 1)

	// Already tagged records are untouched.
	tagged := &types.MemoryRecord{ID: "m2", Text: "x", ProjectID: 1, Tag: types.TagComplaint}
	require.NoError(t, p.EnsureTagged(context.Background(), tagged))
	assert.Equal(t, types.TagComplaint, tagged.Tag)
	assert.Len(t, store.stored, 1)
}

func TestPersistFindings(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{responses: []string{"observation"}}
	p := New(store, gen, nil)

	report := &types.FinalReport{
		Summary: "Overall findings summary.",
		Themes: []types.Theme{
			{Name: "Trust", Description: "users trust the product"},
			{Name: "Cost"},
			{Name: "Speed", Description: "fast enough"},
			{Name: "Dropped", Description: "beyond the persistence cap"},
		},
	}
	scope := types.MemoryScope{ProjectID: 3, AgentID: 4, AnalysisID: 5}
	require.NoError(t, p.PersistFindings(context.Background(), scope, report))

	// Summary plus the top three themes.
	require.Len(t, store.stored, 4)
	assert.Equal(t, "Overall findings summary.", store.stored[0].Text)
	assert.Equal(t, "Trust: users trust the product", store.stored[1].Text)
	assert.Equal(t, "Cost", store.stored[2].Text)
	assert.Equal(t, "Speed: fast enough", store.stored[3].Text)

	for _, rec := range store.stored {
		assert.Equal(t, 3, rec.ProjectID)
		assert.Equal(t, 4, rec.AgentID)
		assert.Equal(t, 5, rec.AnalysisID)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, types.TagObservation, rec.Tag)
	}
}

func TestGroupByTag(t *testing.T) {
	memories := []types.ScoredMemory{
		scored("frustrated with setup", 0.4, types.TagEmotion),
		scored("loved the dashboard", 0.9, types.TagEmotion),
		scored("add an export button", 0.7, types.TagRecommendation),
		scored("untagged note", 0.2, ""),
	}

	gen := &fakeGenerator{responses: []string{"Mixed feelings about the product."}}
	p := New(&fakeStore{}, gen, nil)

	grouped := p.GroupByTag(context.Background(), memories)
	require.Len(t, grouped, 3)

	emotion := grouped[0]
	assert.Equal(t, types.TagEmotion, emotion.Tag)
	assert.Equal(t, 0.9, emotion.Score)
	assert.True(t, strings.HasPrefix(emotion.ID, "group:emotion:"))
	assert.Equal(t, "Mixed feelings about the product.", emotion.Text)
	assert.Equal(t, 2, emotion.Metadata["group_size"])
	assert.Len(t, emotion.Metadata["constituent_ids"], 2)

	// Singleton groups pass through unchanged.
	assert.Equal(t, "add an export button", grouped[1].Text)
	assert.Nil(t, grouped[1].Metadata)

	assert.Equal(t, types.TagOther, grouped[2].Tag)
}

func TestGroupByTagSummarizationFailure(t *testing.T) {
	memories := []types.ScoredMemory{
		scored("frustrated with setup", 0.4, types.TagEmotion),
		scored("loved the dashboard", 0.9, types.TagEmotion),
	}

	p := New(&fakeStore{}, &fakeGenerator{err: errors.New("down")}, nil)

	grouped := p.GroupByTag(context.Background(), memories)
	require.Len(t, grouped, 1)
	assert.Equal(t, "frustrated with setup\nloved the dashboard", grouped[0].Text)
}

func TestFetchTagBackfill(t *testing.T) {
	store := &fakeStore{results: []types.ScoredMemory{
		scored("already tagged", 0.9, types.TagObservation),
		scored("needs a tag", 0.5, ""),
	}}
	gen := &fakeGenerator{responses: []string{"complaint"}}
	p := New(store, gen, nil)

	got := p.Fetch(context.Background(), types.MemoryScope{ProjectID: 1}, "query", 10, FetchOptions{TagMemories: true})
	require.Len(t, got, 2)
	assert.Equal(t, types.TagObservation, got[0].Tag)
	assert.Equal(t, types.TagComplaint, got[1].Tag)

	// Only the backfilled record is written back.
	require.Len(t, store.stored, 1)
	assert.Equal(t, "needs a tag", store.stored[0].Text)
}

func TestFetchGroupSimilar(t *testing.T) {
	store := &fakeStore{results: []types.ScoredMemory{
		scored("frustrated with setup", 0.4, types.TagEmotion),
		scored("add an export button", 0.7, types.TagRecommendation),
		scored("loved the dashboard", 0.9, types.TagEmotion),
	}}
	gen := &fakeGenerator{responses: []string{"Strong feelings either way."}}
	p := New(store, gen, nil)

	got := p.Fetch(context.Background(), types.MemoryScope{ProjectID: 1}, "query", 1, FetchOptions{GroupSimilar: true})

	// Groups are re-sorted by score and truncated back to the limit.
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0].ID, "group:emotion:"))
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, "Strong feelings either way.", got[0].Text)
}

func TestAddMemory(t *testing.T) {
	t.Run("stores and returns id", func(t *testing.T) {
		store := &fakeStore{}
		p := New(store, &fakeGenerator{responses: []string{"idea"}}, nil)

		scope := types.MemoryScope{ProjectID: 2, AgentID: 3}
		id, err := p.AddMemory(context.Background(), "remember this", scope, "", map[string]interface{}{"source": "api"}, false)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		require.Len(t, store.stored, 1)
		rec := store.stored[0]
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, "remember this", rec.Text)
		assert.Equal(t, 2, rec.ProjectID)
		assert.Equal(t, types.MemorySession, rec.MemoryType)
		assert.Equal(t, "api", rec.Metadata["source"])
		assert.Empty(t, rec.Tag)
	})

	t.Run("auto tag classifies", func(t *testing.T) {
		store := &fakeStore{}
		p := New(store, &fakeGenerator{responses: []string{"idea"}}, nil)

		_, err := p.AddMemory(context.Background(), "we could add exports", types.MemoryScope{ProjectID: 1}, types.MemoryLongTerm, nil, true)
		require.NoError(t, err)
		require.Len(t, store.stored, 1)
		assert.Equal(t, types.TagIdea, store.stored[0].Tag)
		assert.Equal(t, types.MemoryLongTerm, store.stored[0].MemoryType)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		p := New(&fakeStore{}, &fakeGenerator{}, nil)
		_, err := p.AddMemory(context.Background(), "   ", types.MemoryScope{ProjectID: 1}, "", nil, false)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		p := New(&fakeStore{err: errors.New("disk full")}, &fakeGenerator{}, nil)
		_, err := p.AddMemory(context.Background(), "text", types.MemoryScope{ProjectID: 1}, "", nil, false)
		assert.ErrorContains(t, err, "failed to store memory")
	})
}
