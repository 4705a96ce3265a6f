package storage

import (
	"errors"

	"github.com/qualagents/qualagents/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVectorUnavailable indicates that the backend cannot perform
	// embedding similarity search.
	ErrVectorUnavailable = errors.New("vector search unavailable")
)

// KeywordFallbackScore is the placeholder relevance score assigned to
// keyword-matched results when embedding similarity is unavailable. It marks
// degraded retrieval without pretending to rank.
const KeywordFallbackScore = 0.5

// SearchQuery describes a memory retrieval request.
type SearchQuery struct {
	// Text is the keyword query. Used directly by keyword backends and as
	// the source text for the embedding on vector backends.
	Text string

	// Embedding is the query vector. May be nil, in which case backends
	// fall back to keyword matching even when vector search is available.
	Embedding []float32

	// Scope restricts the search. ProjectID is required; AgentID and
	// AnalysisID narrow further when set.
	Scope types.MemoryScope

	// MemoryType filters by memory classification. Empty means no filter.
	MemoryType types.MemoryType

	// Limit is the maximum number of results (default: 5, max: 100).
	Limit int

	// Offset skips that many ranked results, for paging.
	Offset int

	// MinScore drops results scoring below this threshold (0.0 to 1.0).
	MinScore float64
}

// Normalize applies defaults and validates the SearchQuery.
func (q *SearchQuery) Normalize() {
	if q.Limit < 1 {
		q.Limit = 5
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.MinScore < 0.0 {
		q.MinScore = 0.0
	}
	if q.MinScore > 1.0 {
		q.MinScore = 1.0
	}
}

// Validate checks the query has enough to run.
func (q *SearchQuery) Validate() error {
	if q.Scope.ProjectID == 0 {
		return errors.New("storage: search query requires a project ID")
	}
	if q.Text == "" && len(q.Embedding) == 0 {
		return errors.New("storage: search query requires text or an embedding")
	}
	return nil
}
