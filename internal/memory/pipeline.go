// Package memory implements the memory pipeline around the semantic store:
// building pre-analysis context from prior findings, persisting new findings
// after an analysis completes, and tag classification with lazy backfill.
package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/internal/tools"
	"github.com/qualagents/qualagents/pkg/types"
)

const (
	// contextWordLimit is the canonical bound on the context summary.
	// Longer summaries are truncated to the first few sentences.
	contextWordLimit     = 100
	contextSentenceLimit = 5

	// maxPersistedThemes caps how many report themes become memories.
	maxPersistedThemes = 3

	// retrievalLimit bounds how many prior memories feed the context summary.
	retrievalLimit = 10
)

// Pipeline wires memory retrieval, summarization, classification, and
// persistence together. All of its degradations are soft: a broken store or
// model never fails the surrounding analysis, it just yields less context.
type Pipeline struct {
	store      storage.SemanticStore
	generator  llm.TextGenerator
	embedder   llm.EmbeddingGenerator
	summarizer *tools.SummarizeMemory
}

// New creates a memory pipeline. The embedder may be nil; memories are then
// stored without embeddings and retrieved by keyword.
func New(store storage.SemanticStore, generator llm.TextGenerator, embedder llm.EmbeddingGenerator) *Pipeline {
	return &Pipeline{
		store:      store,
		generator:  generator,
		embedder:   embedder,
		summarizer: tools.NewSummarizeMemory(generator),
	}
}

// Retrieve returns scope-restricted memories relevant to the query, most
// relevant first. Failures degrade to an empty result.
func (p *Pipeline) Retrieve(ctx context.Context, scope types.MemoryScope, query string, limit int) []types.ScoredMemory {
	if p.store == nil || query == "" {
		return nil
	}
	sq := storage.SearchQuery{Text: query, Scope: scope, Limit: limit}
	if p.embedder != nil && p.store.VectorSearchAvailable() {
		if embedding, err := p.embedder.Embed(ctx, query); err == nil {
			sq.Embedding = embedding
		} else {
			log.Printf("memory: retrieval embedding failed, using keyword search: %v", err)
		}
	}
	memories, err := p.store.SearchMemories(ctx, sq)
	if err != nil {
		log.Printf("memory: retrieval failed: %v", err)
		return nil
	}
	return memories
}

// ContextForAnalysis retrieves memories relevant to the query within scope
// and condenses them into a short context block for the planning prompt.
// Context is only built from two or more memories; a lone prior finding is
// not enough signal to steer the plan. Returns the empty string when there
// is nothing useful; never fails the analysis.
func (p *Pipeline) ContextForAnalysis(ctx context.Context, scope types.MemoryScope, query string) string {
	memories := p.Retrieve(ctx, scope, query, retrievalLimit)
	if len(memories) < 2 {
		return ""
	}

	result, err := p.summarizer.Execute(ctx, map[string]interface{}{"memories": memories})
	if err != nil {
		log.Printf("memory: context summarization failed: %v", err)
		return ""
	}
	summary, _ := result["summary"].(string)
	return TruncateSummary(summary)
}

// PersistFindings stores an analysis report back into the semantic store:
// one memory for the summary and one per top theme. Each persisted memory is
// tag-classified and embedded when possible.
func (p *Pipeline) PersistFindings(ctx context.Context, scope types.MemoryScope, report *types.FinalReport) error {
	if p.store == nil || report == nil {
		return nil
	}

	var texts []string
	if strings.TrimSpace(report.Summary) != "" {
		texts = append(texts, report.Summary)
	}
	themes := report.Themes
	if len(themes) > maxPersistedThemes {
		themes = themes[:maxPersistedThemes]
	}
	for _, theme := range themes {
		text := theme.Name
		if theme.Description != "" {
			text = fmt.Sprintf("%s: %s", theme.Name, theme.Description)
		}
		texts = append(texts, text)
	}

	var firstErr error
	for _, text := range texts {
		if err := p.storeMemory(ctx, scope, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pipeline) storeMemory(ctx context.Context, scope types.MemoryScope, text string) error {
	_, err := p.AddMemory(ctx, text, scope, types.MemorySession, nil, true)
	return err
}

// AddMemory stores a caller-supplied memory, embedding it when possible and
// classifying its tag when autoTag is set. It returns the new record's ID.
func (p *Pipeline) AddMemory(ctx context.Context, text string, scope types.MemoryScope, memoryType types.MemoryType, metadata map[string]interface{}, autoTag bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("memory: %w: text is required", storage.ErrInvalidInput)
	}
	if memoryType == "" {
		memoryType = types.MemorySession
	}

	rec := &types.MemoryRecord{
		ID:         uuid.NewString(),
		Text:       text,
		ProjectID:  scope.ProjectID,
		AgentID:    scope.AgentID,
		AnalysisID: scope.AnalysisID,
		MemoryType: memoryType,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
	if autoTag {
		rec.Tag = p.TagText(ctx, text)
	}
	if p.embedder != nil {
		if embedding, err := p.embedder.Embed(ctx, text); err == nil {
			rec.Embedding = embedding
		} else {
			log.Printf("memory: embedding failed, storing without vector: %v", err)
		}
	}
	if err := p.store.StoreMemory(ctx, rec); err != nil {
		return "", fmt.Errorf("memory: failed to store memory: %w", err)
	}
	return rec.ID, nil
}

// TagText classifies text into one memory tag. Unusable model output and
// call failures coerce to TagOther.
func (p *Pipeline) TagText(ctx context.Context, text string) types.MemoryTag {
	if p.generator == nil || text == "" {
		return types.TagOther
	}
	raw, err := p.generator.Complete(ctx, llm.TagSystemPrompt, llm.TagPrompt(text))
	if err != nil {
		log.Printf("memory: tag classification failed: %v", err)
		return types.TagOther
	}
	return types.NormalizeMemoryTag(llm.ParseTagResponse(raw))
}

// EnsureTagged backfills the tag on an untagged record and persists it.
// Already-tagged records are untouched.
func (p *Pipeline) EnsureTagged(ctx context.Context, rec *types.MemoryRecord) error {
	if rec == nil || rec.Tag != "" {
		return nil
	}
	rec.Tag = p.TagText(ctx, rec.Text)
	if p.store == nil {
		return nil
	}
	return p.store.StoreMemory(ctx, rec)
}

// FetchOptions control post-retrieval processing in Fetch.
type FetchOptions struct {
	// TagMemories backfills the classification tag on untagged results.
	TagMemories bool

	// GroupSimilar collapses same-tag results into summarized pseudo-records.
	GroupSimilar bool
}

// Fetch retrieves relevant memories and applies the requested
// post-processing: tag backfill, then same-tag grouping with the groups
// re-sorted by score and truncated back to limit. Failures degrade to the
// raw retrieval result.
func (p *Pipeline) Fetch(ctx context.Context, scope types.MemoryScope, query string, limit int, opts FetchOptions) []types.ScoredMemory {
	memories := p.Retrieve(ctx, scope, query, limit)

	if opts.TagMemories {
		for i := range memories {
			if memories[i].Tag != "" {
				continue
			}
			rec := memories[i].MemoryRecord
			if err := p.EnsureTagged(ctx, &rec); err != nil {
				log.Printf("memory: tag backfill failed for %s: %v", rec.ID, err)
				continue
			}
			memories[i].MemoryRecord = rec
		}
	}

	if opts.GroupSimilar {
		memories = p.GroupByTag(ctx, memories)
		sort.SliceStable(memories, func(i, j int) bool {
			return memories[i].Score > memories[j].Score
		})
		if limit > 0 && len(memories) > limit {
			memories = memories[:limit]
		}
	}
	return memories
}

// GroupByTag collapses memories sharing a tag into one pseudo-record per
// tag: a summarized text, the group's best score, and metadata recording
// the constituent IDs. Untagged memories group under TagOther.
func (p *Pipeline) GroupByTag(ctx context.Context, memories []types.ScoredMemory) []types.ScoredMemory {
	groups := make(map[types.MemoryTag][]types.ScoredMemory)
	var order []types.MemoryTag
	for _, m := range memories {
		tag := m.Tag
		if tag == "" {
			tag = types.TagOther
		}
		if _, seen := groups[tag]; !seen {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], m)
	}

	out := make([]types.ScoredMemory, 0, len(order))
	for _, tag := range order {
		members := groups[tag]
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}

		var ids []string
		maxScore := members[0].Score
		for _, m := range members {
			ids = append(ids, m.ID)
			if m.Score > maxScore {
				maxScore = m.Score
			}
		}

		out = append(out, types.ScoredMemory{
			MemoryRecord: types.MemoryRecord{
				ID:         fmt.Sprintf("group:%s:%s", tag, uuid.NewString()),
				Text:       p.summarizeGroup(ctx, members),
				ProjectID:  members[0].ProjectID,
				AgentID:    members[0].AgentID,
				MemoryType: members[0].MemoryType,
				Tag:        tag,
				Metadata: map[string]interface{}{
					"constituent_ids": ids,
					"group_size":      len(members),
				},
			},
			Score: maxScore,
		})
	}
	return out
}

// summarizeGroup condenses a multi-member group into one text, falling back
// to the joined member texts when summarization fails.
func (p *Pipeline) summarizeGroup(ctx context.Context, members []types.ScoredMemory) string {
	result, err := p.summarizer.Execute(ctx, map[string]interface{}{"memories": members})
	if err == nil {
		if summary, _ := result["summary"].(string); summary != "" {
			return summary
		}
	} else {
		log.Printf("memory: group summarization failed, joining texts: %v", err)
	}

	texts := make([]string, 0, len(members))
	for _, m := range members {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "\n")
}

// TruncateSummary enforces the canonical context length: summaries over the
// word limit are cut to their first few sentences.
func TruncateSummary(summary string) string {
	summary = strings.TrimSpace(summary)
	if len(strings.Fields(summary)) <= contextWordLimit {
		return summary
	}
	return firstSentences(summary, contextSentenceLimit)
}

func firstSentences(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == '.' || r == '?' || r == '!' {
			count++
			if count == n {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}
	return s
}
