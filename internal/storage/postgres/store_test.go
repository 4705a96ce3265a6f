package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// newTestStore connects to the database named by QUALAGENTS_TEST_POSTGRES_DSN.
// Tests are skipped when the variable is unset so the suite runs without a
// live PostgreSQL instance.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("QUALAGENTS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUALAGENTS_TEST_POSTGRES_DSN not set")
	}
	s, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresMemoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := &types.MemoryRecord{
		ID:         uuid.NewString(),
		Text:       "postgres round trip memory",
		ProjectID:  999999,
		MemoryType: types.MemoryTest,
		Tag:        types.TagObservation,
		Embedding:  []float32{0.5, 0.5, 0.5},
	}
	require.NoError(t, s.StoreMemory(ctx, mem))
	defer func() { _, _ = s.DeleteMemories(ctx, types.MemoryScope{ProjectID: 999999}) }()

	got, err := s.GetMemory(ctx, mem.ID)
	require.NoError(t, err)
	assert.Equal(t, mem.Text, got.Text)
	assert.Equal(t, mem.Embedding, got.Embedding)
}

func TestPostgresProjectAndAgentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	project := &types.Project{Name: "crud probe project"}
	require.NoError(t, s.CreateProject(ctx, project))
	require.NotZero(t, project.ID)
	defer func() { _ = s.DeleteProject(ctx, project.ID) }()

	got, err := s.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "crud probe project", got.Name)

	agent := &types.Agent{
		Name:          "crud probe agent",
		Model:         "gpt-4o-mini",
		Configuration: types.AgentConfig{MaxToolCalls: 2},
	}
	require.NoError(t, s.CreateAgent(ctx, agent))
	require.NotZero(t, agent.ID)
	defer func() { _ = s.DeleteAgent(ctx, agent.ID) }()

	gotAgent, err := s.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gotAgent.Configuration.MaxToolCalls)
}

func TestPostgresKeywordFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mem := &types.MemoryRecord{
		ID:         uuid.NewString(),
		Text:       "keyword fallback probe text",
		ProjectID:  999999,
		MemoryType: types.MemoryTest,
	}
	require.NoError(t, s.StoreMemory(ctx, mem))
	defer func() { _, _ = s.DeleteMemories(ctx, types.MemoryScope{ProjectID: 999999}) }()

	// No embedding in the query forces the keyword path regardless of
	// pgvector availability.
	results, err := s.SearchMemories(ctx, storage.SearchQuery{
		Text:  "fallback probe",
		Scope: types.MemoryScope{ProjectID: 999999},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, storage.KeywordFallbackScore, results[0].Score)
}
