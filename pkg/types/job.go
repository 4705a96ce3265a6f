package types

import "time"

// JobStatus is the lifecycle status of a submitted analysis job.
type JobStatus string

// Job status constants. Transitions: pending → in_progress → completed|failed.
const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// AnalysisJob is the persisted record of one submitted analysis.
// The job's lifecycle is decoupled from any observer: an abandoned status
// stream does not affect the underlying run.
type AnalysisJob struct {
	ID          string                 `json:"id"`                     // UUID job handle
	ProjectID   int                    `json:"project_id"`             // Owning project
	AgentID     int                    `json:"agent_id"`               // Agent that runs the analysis
	Data        map[string]interface{} `json:"data"`                   // Raw submitted input
	Status      JobStatus              `json:"status"`                 // Lifecycle status
	Results     *FinalReport           `json:"results,omitempty"`      // Set when completed
	Error       string                 `json:"error,omitempty"`        // Set when failed
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// Project is a container for related analyses and memories.
type Project struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Agent is a persisted agent definition: a model plus configuration.
type Agent struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Model         string      `json:"model"`
	Configuration AgentConfig `json:"configuration"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
