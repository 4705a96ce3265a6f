// Package storage provides composable storage interfaces for the QualAgents
// system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Both backends (PostgreSQL
// and SQLite) implement all of them; callers depend only on the interface
// they need.
package storage

import (
	"context"
	"time"

	"github.com/qualagents/qualagents/pkg/types"
)

// SemanticStore persists agent memories and retrieves them by relevance.
type SemanticStore interface {
	// StoreMemory creates or updates a memory (upsert by ID).
	StoreMemory(ctx context.Context, memory *types.MemoryRecord) error

	// GetMemory retrieves a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	GetMemory(ctx context.Context, id string) (*types.MemoryRecord, error)

	// SearchMemories returns memories matching the query, most relevant
	// first. Backends with vector support rank by embedding similarity;
	// otherwise they fall back to keyword matching with a placeholder
	// relevance score. An empty result is not an error.
	SearchMemories(ctx context.Context, query SearchQuery) ([]types.ScoredMemory, error)

	// ListMemories returns all memories within a scope, newest first.
	ListMemories(ctx context.Context, scope types.MemoryScope, limit int) ([]*types.MemoryRecord, error)

	// DeleteMemories removes every memory in the given scope and returns
	// the number of rows deleted.
	DeleteMemories(ctx context.Context, scope types.MemoryScope) (int, error)

	// VectorSearchAvailable reports whether this backend can rank by
	// embedding similarity. When false, SearchMemories uses keyword
	// matching.
	VectorSearchAvailable() bool

	// Close releases any resources held by the store.
	Close() error
}

// CacheStore is a persistent key-value cache with per-entry expiry.
// The planning cache sits on top of it.
type CacheStore interface {
	// GetCacheEntry returns the value for key.
	// Returns ErrNotFound when the key is absent or the entry has expired.
	GetCacheEntry(ctx context.Context, key string) (string, error)

	// SetCacheEntry stores value under key (upsert). A nil expiresAt means
	// the entry never expires.
	SetCacheEntry(ctx context.Context, key, value string, expiresAt *time.Time) error

	// DeleteCacheEntry removes a single entry. Deleting a missing key is
	// not an error.
	DeleteCacheEntry(ctx context.Context, key string) error

	// CleanupExpired removes all expired entries and returns the count.
	CleanupExpired(ctx context.Context) (int, error)
}

// JobStore persists analysis jobs and their lifecycle transitions.
type JobStore interface {
	// CreateJob inserts a new job. The job must have an ID and a pending
	// status.
	CreateJob(ctx context.Context, job *types.AnalysisJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*types.AnalysisJob, error)

	// UpdateJobStatus transitions a job to the given status. For terminal
	// statuses the results or error message are persisted alongside and
	// completed_at is set.
	UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, results *types.FinalReport, errMsg string) error

	// ListJobs returns jobs for a project, newest first.
	ListJobs(ctx context.Context, projectID int, limit int) ([]*types.AnalysisJob, error)
}

// ProjectStore persists project containers.
type ProjectStore interface {
	// CreateProject inserts a new project and assigns its ID.
	CreateProject(ctx context.Context, project *types.Project) error

	// GetProject retrieves a project by ID.
	// Returns ErrNotFound if the project doesn't exist.
	GetProject(ctx context.Context, id int) (*types.Project, error)

	// ListProjects returns projects, newest first.
	ListProjects(ctx context.Context, limit int) ([]*types.Project, error)

	// DeleteProject removes a project.
	// Returns ErrNotFound if the project doesn't exist.
	DeleteProject(ctx context.Context, id int) error
}

// AgentStore persists agent definitions.
type AgentStore interface {
	// CreateAgent inserts a new agent definition and assigns its ID.
	CreateAgent(ctx context.Context, agent *types.Agent) error

	// GetAgent retrieves an agent by ID.
	// Returns ErrNotFound if the agent doesn't exist.
	GetAgent(ctx context.Context, id int) (*types.Agent, error)

	// ListAgents returns agent definitions, newest first.
	ListAgents(ctx context.Context, limit int) ([]*types.Agent, error)

	// DeleteAgent removes an agent definition.
	// Returns ErrNotFound if the agent doesn't exist.
	DeleteAgent(ctx context.Context, id int) error
}

// Store is the full storage surface a backend provides.
type Store interface {
	SemanticStore
	CacheStore
	JobStore
	ProjectStore
	AgentStore
}
