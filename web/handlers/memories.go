package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/qualagents/qualagents/internal/llm"
	"github.com/qualagents/qualagents/internal/memory"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// MemoryHandlers contains the HTTP handlers for the memories API.
type MemoryHandlers struct {
	store    storage.SemanticStore
	embedder llm.EmbeddingGenerator
	pipeline *memory.Pipeline
}

// NewMemoryHandlers creates a new MemoryHandlers instance. The embedder may
// be nil; searches then run keyword-only. The pipeline backs memory
// creation, tag backfill, and grouping; when nil those features degrade to
// plain retrieval.
func NewMemoryHandlers(store storage.SemanticStore, embedder llm.EmbeddingGenerator, pipeline *memory.Pipeline) *MemoryHandlers {
	return &MemoryHandlers{store: store, embedder: embedder, pipeline: pipeline}
}

// SearchMemories handles GET /api/memories?project_id=N&q=...&limit=M.
// Optional offset pages through results; tag_memories and group_similar
// route through the memory pipeline. Without a query it lists the scope's
// memories instead.
func (h *MemoryHandlers) SearchMemories(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := parseInt(q.Get("limit"), 10)
	query := q.Get("q")

	if query == "" {
		h.listMemories(w, r, scope, limit)
		return
	}

	opts := memory.FetchOptions{
		TagMemories:  q.Get("tag_memories") == "true",
		GroupSimilar: q.Get("group_similar") == "true",
	}
	if h.pipeline != nil && (opts.TagMemories || opts.GroupSimilar) {
		results := h.pipeline.Fetch(r.Context(), scope, query, limit, opts)
		respondJSON(w, http.StatusOK, searchResponse(results, query))
		return
	}

	sq := storage.SearchQuery{
		Text:   query,
		Scope:  scope,
		Limit:  limit,
		Offset: parseInt(q.Get("offset"), 0),
	}
	if h.embedder != nil && h.store.VectorSearchAvailable() {
		if embedding, err := h.embedder.Embed(r.Context(), query); err == nil {
			sq.Embedding = embedding
		} else {
			log.Printf("handlers: search embedding failed, using keyword search: %v", err)
		}
	}

	results, err := h.store.SearchMemories(r.Context(), sq)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, searchResponse(results, query))
}

// CreateMemory handles POST /api/memories - store a caller-supplied memory,
// optionally auto-classifying its tag.
func (h *MemoryHandlers) CreateMemory(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "memory pipeline not configured", nil)
		return
	}

	var req CreateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required", nil)
		return
	}
	if req.ProjectID == 0 {
		respondError(w, http.StatusBadRequest, "project_id is required", nil)
		return
	}

	scope := types.MemoryScope{
		ProjectID:  req.ProjectID,
		AgentID:    req.AgentID,
		AnalysisID: req.AnalysisID,
	}
	id, err := h.pipeline.AddMemory(r.Context(), req.Text, scope,
		types.MemoryType(req.MemoryType), req.Metadata, req.AutoTag)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store memory", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (h *MemoryHandlers) listMemories(w http.ResponseWriter, r *http.Request, scope types.MemoryScope, limit int) {
	records, err := h.store.ListMemories(r.Context(), scope, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list memories", err)
		return
	}

	results := make([]MemoryResult, 0, len(records))
	for _, rec := range records {
		results = append(results, MemoryResult{
			ID:       rec.ID,
			Text:     rec.Text,
			Tag:      string(rec.Tag),
			Metadata: rec.Metadata,
		})
	}
	respondJSON(w, http.StatusOK, SearchResponse{Results: results, Total: len(results)})
}

// DeleteMemories handles DELETE /api/memories?project_id=N - remove all
// memories in the given scope.
func (h *MemoryHandlers) DeleteMemories(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteMemories(r.Context(), scope)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete memories", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// scopeFromRequest reads the memory scope from query parameters. A missing
// project_id is a client error.
func scopeFromRequest(w http.ResponseWriter, r *http.Request) (types.MemoryScope, bool) {
	q := r.URL.Query()
	scope := types.MemoryScope{
		ProjectID:  parseInt(q.Get("project_id"), 0),
		AgentID:    parseInt(q.Get("agent_id"), 0),
		AnalysisID: parseInt(q.Get("analysis_id"), 0),
	}
	if scope.ProjectID == 0 {
		respondError(w, http.StatusBadRequest, "project_id is required", nil)
		return types.MemoryScope{}, false
	}
	return scope, true
}

func searchResponse(results []types.ScoredMemory, query string) SearchResponse {
	out := make([]MemoryResult, 0, len(results))
	for _, m := range results {
		out = append(out, MemoryResult{
			ID:       m.ID,
			Text:     m.Text,
			Tag:      string(m.Tag),
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return SearchResponse{Results: out, Total: len(out), Query: query}
}
