// Package handlers provides the HTTP handlers and middleware for the
// QualAgents REST API.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/qualagents/qualagents/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SubmitAnalysisRequest is the request body for POST /api/analyses.
// Data carries one of the accepted input shapes (text, texts, documents,
// interviews) plus optional analysis parameters.
type SubmitAnalysisRequest struct {
	ProjectID int                    `json:"project_id"`
	AgentID   int                    `json:"agent_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// JobResponse is the job status representation returned by the analyses
// endpoints. Results are only attached by the results endpoint.
type JobResponse struct {
	ID          string          `json:"id"`
	ProjectID   int             `json:"project_id"`
	AgentID     int             `json:"agent_id,omitempty"`
	Status      types.JobStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

func jobResponse(job *types.AnalysisJob) JobResponse {
	resp := JobResponse{
		ID:        job.ID,
		ProjectID: job.ProjectID,
		AgentID:   job.AgentID,
		Status:    job.Status,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// CreateMemoryRequest is the request body for POST /api/memories.
type CreateMemoryRequest struct {
	Text       string                 `json:"text"`
	ProjectID  int                    `json:"project_id"`
	AgentID    int                    `json:"agent_id,omitempty"`
	AnalysisID int                    `json:"analysis_id,omitempty"`
	MemoryType string                 `json:"memory_type,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	AutoTag    bool                   `json:"auto_tag,omitempty"`
}

// SearchResponse is the response format for GET /api/memories.
type SearchResponse struct {
	Results []MemoryResult `json:"results"`
	Total   int            `json:"total"`
	Query   string         `json:"query,omitempty"`
}

// MemoryResult is a single memory with its relevance score.
type MemoryResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Tag      string                 `json:"tag,omitempty"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// parseInt parses a query parameter, falling back to a default.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing more to do.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
