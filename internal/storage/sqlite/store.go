// Package sqlite provides a SQLite implementation of storage interfaces.
// It is the zero-dependency fallback backend: memory search is keyword-only
// (no vector similarity), everything else has full parity with PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// Schema contains the SQL statements to create the SQLite schema.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,

    project_id INTEGER NOT NULL,
    agent_id INTEGER,
    analysis_id INTEGER,

    memory_type TEXT NOT NULL DEFAULT 'session',
    tag TEXT,

    embedding TEXT,
    metadata TEXT,

    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_id);
CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(project_id, agent_id);
CREATE INDEX IF NOT EXISTS idx_memories_analysis ON memories(analysis_id);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_tag ON memories(tag);
CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp);

CREATE TABLE IF NOT EXISTS cache_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    expires_at DATETIME,

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at);

CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    project_id INTEGER NOT NULL,
    agent_id INTEGER NOT NULL,

    data TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    results TEXT,
    error TEXT,

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT,

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS agents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT,
    model TEXT NOT NULL,
    configuration TEXT,

    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database, configures WAL mode, and creates the
// schema. The dsn is a file path or ":memory:".
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// VectorSearchAvailable always reports false; SQLite searches by keyword.
func (s *Store) VectorSearchAvailable() bool {
	return false
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreMemory creates or updates a memory (upsert by ID).
func (s *Store) StoreMemory(ctx context.Context, memory *types.MemoryRecord) error {
	if memory == nil {
		return storage.ErrInvalidInput
	}
	if memory.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if memory.Text == "" {
		return fmt.Errorf("%w: memory text is required", storage.ErrInvalidInput)
	}
	if memory.ProjectID == 0 {
		return fmt.Errorf("%w: memory project ID is required", storage.ErrInvalidInput)
	}

	if memory.MemoryType == "" {
		memory.MemoryType = types.MemorySession
	}
	if memory.Timestamp.IsZero() {
		memory.Timestamp = time.Now()
	}

	var embeddingJSON, metadataJSON []byte
	var err error
	if len(memory.Embedding) > 0 {
		embeddingJSON, err = json.Marshal(memory.Embedding)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal embedding: %w", err)
		}
	}
	if memory.Metadata != nil {
		metadataJSON, err = json.Marshal(memory.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal metadata: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, project_id, agent_id, analysis_id, memory_type, tag, embedding, metadata, timestamp, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			project_id = excluded.project_id,
			agent_id = excluded.agent_id,
			analysis_id = excluded.analysis_id,
			memory_type = excluded.memory_type,
			tag = excluded.tag,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			timestamp = excluded.timestamp,
			updated_at = CURRENT_TIMESTAMP
	`, memory.ID, memory.Text, memory.ProjectID,
		nullInt(memory.AgentID), nullInt(memory.AnalysisID),
		string(memory.MemoryType), nullString(string(memory.Tag)),
		nullBytes(embeddingJSON), nullBytes(metadataJSON), memory.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by ID.
func (s *Store) GetMemory(ctx context.Context, id string) (*types.MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, project_id, agent_id, analysis_id, memory_type, tag, embedding, metadata, timestamp
		FROM memories WHERE id = ?
	`, id)
	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get memory: %w", err)
	}
	return mem, nil
}

// SearchMemories matches memories by keyword. Every term in the query text
// must appear in the content; results carry the placeholder fallback score
// and are ordered newest first.
func (s *Store) SearchMemories(ctx context.Context, query storage.SearchQuery) ([]types.ScoredMemory, error) {
	query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if query.Text == "" {
		return nil, fmt.Errorf("%w: sqlite backend requires query text", storage.ErrVectorUnavailable)
	}
	if query.MinScore > storage.KeywordFallbackScore {
		return nil, nil
	}

	where, args := scopeClauses(query)
	for _, term := range strings.Fields(strings.ToLower(query.Text)) {
		where = append(where, "LOWER(content) LIKE ?")
		args = append(args, "%"+term+"%")
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, content, project_id, agent_id, analysis_id, memory_type, tag, embedding, metadata, timestamp
		FROM memories
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT %d OFFSET %d
	`, strings.Join(where, " AND "), query.Limit, query.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: keyword search failed: %w", err)
	}
	defer rows.Close()

	var out []types.ScoredMemory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
		}
		out = append(out, types.ScoredMemory{MemoryRecord: *mem, Score: storage.KeywordFallbackScore})
	}
	return out, rows.Err()
}

// ListMemories returns memories within a scope, newest first.
func (s *Store) ListMemories(ctx context.Context, scope types.MemoryScope, limit int) ([]*types.MemoryRecord, error) {
	if scope.ProjectID == 0 {
		return nil, fmt.Errorf("%w: project ID is required", storage.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 50
	}

	where, args := scopeClauses(storage.SearchQuery{Scope: scope})
	sqlQuery := fmt.Sprintf(`
		SELECT id, content, project_id, agent_id, analysis_id, memory_type, tag, embedding, metadata, timestamp
		FROM memories
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT %d
	`, strings.Join(where, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list memories: %w", err)
	}
	defer rows.Close()

	var out []*types.MemoryRecord
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// DeleteMemories removes all memories in the given scope.
func (s *Store) DeleteMemories(ctx context.Context, scope types.MemoryScope) (int, error) {
	if scope.ProjectID == 0 {
		return 0, fmt.Errorf("%w: project ID is required", storage.ErrInvalidInput)
	}

	where, args := scopeClauses(storage.SearchQuery{Scope: scope})
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM memories WHERE %s", strings.Join(where, " AND ")), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to delete memories: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// GetCacheEntry returns the cached value for key, treating expired entries
// as absent.
func (s *Store) GetCacheEntry(ctx context.Context, key string) (string, error) {
	var value string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM cache_entries WHERE key = ?", key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("sqlite: failed to get cache entry: %w", err)
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// SetCacheEntry stores value under key (upsert).
func (s *Store) SetCacheEntry(ctx context.Context, key, value string, expiresAt *time.Time) error {
	if key == "" {
		return fmt.Errorf("%w: cache key is required", storage.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to set cache entry: %w", err)
	}
	return nil
}

// DeleteCacheEntry removes a cache entry.
func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite: failed to delete cache entry: %w", err)
	}
	return nil
}

// CleanupExpired removes expired cache entries and returns the count.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to clean up cache: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// CreateJob inserts a new analysis job.
func (s *Store) CreateJob(ctx context.Context, job *types.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job ID is required", storage.ErrInvalidInput)
	}
	if job.Status == "" {
		job.Status = types.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = job.CreatedAt

	var dataJSON []byte
	var err error
	if job.Data != nil {
		dataJSON, err = json.Marshal(job.Data)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal job data: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, project_id, agent_id, data, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.ProjectID, job.AgentID, nullBytes(dataJSON), string(job.Status), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*types.AnalysisJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, agent_id, data, status, results, error, created_at, updated_at, completed_at
		FROM jobs WHERE id = ?
	`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus transitions a job. Terminal statuses also persist results
// or the error message and stamp completed_at.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, results *types.FinalReport, errMsg string) error {
	var resultsJSON []byte
	var err error
	if results != nil {
		resultsJSON, err = json.Marshal(results)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal job results: %w", err)
		}
	}

	var completedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, results = COALESCE(?, results), error = ?,
		       updated_at = CURRENT_TIMESTAMP, completed_at = COALESCE(?, completed_at)
		WHERE id = ?
	`, string(status), nullBytes(resultsJSON), nullString(errMsg), completedAt, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update job status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListJobs returns jobs for a project, newest first.
func (s *Store) ListJobs(ctx context.Context, projectID int, limit int) ([]*types.AnalysisJob, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, agent_id, data, status, results, error, created_at, updated_at, completed_at
		FROM jobs WHERE project_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*types.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// CreateProject inserts a new project and assigns its ID.
func (s *Store) CreateProject(ctx context.Context, project *types.Project) error {
	if project == nil || project.Name == "" {
		return fmt.Errorf("%w: project name is required", storage.ErrInvalidInput)
	}
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, project.Name, nullString(project.Description), now, now)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get project ID: %w", err)
	}
	project.ID = int(id)
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id int) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get project: %w", err)
	}
	return project, nil
}

// ListProjects returns projects, newest first.
func (s *Store) ListProjects(ctx context.Context, limit int) ([]*types.Project, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []*types.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan project: %w", err)
		}
		out = append(out, project)
	}
	return out, rows.Err()
}

// DeleteProject removes a project.
func (s *Store) DeleteProject(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete project: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateAgent inserts a new agent definition and assigns its ID.
func (s *Store) CreateAgent(ctx context.Context, agent *types.Agent) error {
	if agent == nil || agent.Name == "" {
		return fmt.Errorf("%w: agent name is required", storage.ErrInvalidInput)
	}
	if agent.Model == "" {
		return fmt.Errorf("%w: agent model is required", storage.ErrInvalidInput)
	}

	configJSON, err := json.Marshal(agent.Configuration)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal agent configuration: %w", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (name, description, model, configuration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, agent.Name, nullString(agent.Description), agent.Model, string(configJSON), now, now)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create agent: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get agent ID: %w", err)
	}
	agent.ID = int(id)
	agent.CreatedAt = now
	agent.UpdatedAt = now
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, id int) (*types.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, model, configuration, created_at, updated_at
		FROM agents WHERE id = ?
	`, id)
	agent, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get agent: %w", err)
	}
	return agent, nil
}

// ListAgents returns agent definitions, newest first.
func (s *Store) ListAgents(ctx context.Context, limit int) ([]*types.Agent, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, model, configuration, created_at, updated_at
		FROM agents
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []*types.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan agent: %w", err)
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

// DeleteAgent removes an agent definition.
func (s *Store) DeleteAgent(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete agent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scopeClauses(q storage.SearchQuery) ([]string, []interface{}) {
	where := []string{"project_id = ?"}
	args := []interface{}{q.Scope.ProjectID}

	if q.Scope.AgentID != 0 {
		where = append(where, "agent_id = ?")
		args = append(args, q.Scope.AgentID)
	}
	if q.Scope.AnalysisID != 0 {
		where = append(where, "analysis_id = ?")
		args = append(args, q.Scope.AnalysisID)
	}
	if q.MemoryType != "" {
		where = append(where, "memory_type = ?")
		args = append(args, string(q.MemoryType))
	}
	return where, args
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*types.MemoryRecord, error) {
	var mem types.MemoryRecord
	var agentID, analysisID sql.NullInt64
	var tag, embeddingJSON, metadataJSON sql.NullString

	err := row.Scan(&mem.ID, &mem.Text, &mem.ProjectID, &agentID, &analysisID,
		&mem.MemoryType, &tag, &embeddingJSON, &metadataJSON, &mem.Timestamp)
	if err != nil {
		return nil, err
	}

	mem.AgentID = int(agentID.Int64)
	mem.AnalysisID = int(analysisID.Int64)
	mem.Tag = types.MemoryTag(tag.String)

	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &mem.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &mem.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &mem, nil
}

func scanJob(row rowScanner) (*types.AnalysisJob, error) {
	var job types.AnalysisJob
	var dataJSON, resultsJSON, errMsg sql.NullString
	var completedAt sql.NullTime
	var status string

	err := row.Scan(&job.ID, &job.ProjectID, &job.AgentID, &dataJSON, &status,
		&resultsJSON, &errMsg, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.Status = types.JobStatus(status)
	job.Error = errMsg.String
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &job.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job data: %w", err)
		}
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		job.Results = &types.FinalReport{}
		if err := json.Unmarshal([]byte(resultsJSON.String), job.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job results: %w", err)
		}
	}
	return &job, nil
}

func scanProject(row rowScanner) (*types.Project, error) {
	var project types.Project
	var description sql.NullString
	err := row.Scan(&project.ID, &project.Name, &description,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, err
	}
	project.Description = description.String
	return &project, nil
}

func scanAgent(row rowScanner) (*types.Agent, error) {
	var agent types.Agent
	var description, configJSON sql.NullString
	err := row.Scan(&agent.ID, &agent.Name, &description, &agent.Model,
		&configJSON, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		return nil, err
	}
	agent.Description = description.String
	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &agent.Configuration); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent configuration: %w", err)
		}
	}
	return &agent, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)
