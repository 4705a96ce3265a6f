package types

import "time"

// MemoryType classifies how long a memory should be retained and how it is
// scoped to analysis runs.
type MemoryType string

// Memory type constants.
const (
	// MemorySession is a memory scoped to a single analysis session.
	MemorySession MemoryType = "session"

	// MemoryLongTerm is a durable memory kept across sessions.
	MemoryLongTerm MemoryType = "long_term"

	// MemoryPreference records a user or agent preference.
	MemoryPreference MemoryType = "preference"

	// MemoryTest marks memories created by tests.
	MemoryTest MemoryType = "test"
)

// IsValidMemoryType reports whether t is a known memory type.
func IsValidMemoryType(t MemoryType) bool {
	switch t {
	case MemorySession, MemoryLongTerm, MemoryPreference, MemoryTest:
		return true
	}
	return false
}

// MemoryTag is the coarse semantic classification attached to a memory record.
type MemoryTag string

// Memory tag constants. Classification assigns exactly one tag per memory;
// unparseable labels coerce to TagOther.
const (
	TagObservation    MemoryTag = "observation"
	TagEmotion        MemoryTag = "emotion"
	TagRecommendation MemoryTag = "recommendation"
	TagComplaint      MemoryTag = "complaint"
	TagIdea           MemoryTag = "idea"
	TagOther          MemoryTag = "other"
)

// ValidMemoryTags lists every assignable memory tag.
var ValidMemoryTags = []MemoryTag{
	TagObservation,
	TagEmotion,
	TagRecommendation,
	TagComplaint,
	TagIdea,
	TagOther,
}

// IsValidMemoryTag reports whether t is a known memory tag.
func IsValidMemoryTag(t MemoryTag) bool {
	for _, v := range ValidMemoryTags {
		if t == v {
			return true
		}
	}
	return false
}

// NormalizeMemoryTag coerces an arbitrary classification label to a valid
// tag; anything unknown becomes TagOther.
func NormalizeMemoryTag(label string) MemoryTag {
	t := MemoryTag(label)
	if IsValidMemoryTag(t) {
		return t
	}
	return TagOther
}

// MemoryScope restricts which memories are visible to a query: the
// combination of project, agent, and analysis identifiers. ProjectID is
// required; AgentID and AnalysisID are optional narrowing filters.
type MemoryScope struct {
	ProjectID  int `json:"project_id"`
	AgentID    int `json:"agent_id,omitempty"`
	AnalysisID int `json:"analysis_id,omitempty"`
}

// MemoryRecord is an embedded text record in the semantic store.
// Records are never mutated after creation except for lazy tag backfill:
// an untagged record is classified once on request and the tag persisted.
type MemoryRecord struct {
	ID         string                 `json:"id"`                    // UUID
	Text       string                 `json:"text"`                  // Memory content
	Embedding  []float32              `json:"embedding,omitempty"`   // Vector embedding
	ProjectID  int                    `json:"project_id"`            // Owning project
	AgentID    int                    `json:"agent_id,omitempty"`    // Optional agent scope
	AnalysisID int                    `json:"analysis_id,omitempty"` // Optional analysis scope
	MemoryType MemoryType             `json:"memory_type"`           // session, long_term, preference, test
	Timestamp  time.Time              `json:"timestamp"`             // Creation time
	Tag        MemoryTag              `json:"tag,omitempty"`         // Semantic classification (may be unset)
	Metadata   map[string]interface{} `json:"metadata,omitempty"`    // Arbitrary metadata
}

// ScoredMemory pairs a memory record with a retrieval relevance score.
type ScoredMemory struct {
	MemoryRecord
	Score float64 `json:"score"`
}
