package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// AnalysisAPI is the slice of the analysis service the handlers need.
type AnalysisAPI interface {
	Submit(ctx context.Context, projectID, agentID int, data map[string]interface{}) (*types.AnalysisJob, error)
	GetJob(ctx context.Context, id string) (*types.AnalysisJob, error)
	ListJobs(ctx context.Context, projectID, limit int) ([]*types.AnalysisJob, error)
}

// AnalysisHandlers contains the HTTP handlers for the analyses API.
type AnalysisHandlers struct {
	service AnalysisAPI
}

// NewAnalysisHandlers creates a new AnalysisHandlers instance.
func NewAnalysisHandlers(service AnalysisAPI) *AnalysisHandlers {
	return &AnalysisHandlers{service: service}
}

// SubmitAnalysis handles POST /api/analyses. The job is accepted and runs
// asynchronously; the response carries the job handle for polling.
func (h *AnalysisHandlers) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	job, err := h.service.Submit(r.Context(), req.ProjectID, req.AgentID, req.Data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid analysis submission", err)
		return
	}

	respondJSON(w, http.StatusAccepted, jobResponse(job))
}

// GetAnalysis handles GET /api/analyses/{id} - job status without results.
func (h *AnalysisHandlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "analysis not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load analysis", err)
		return
	}
	respondJSON(w, http.StatusOK, jobResponse(job))
}

// GetAnalysisResults handles GET /api/analyses/{id}/results.
// Results exist only for completed jobs; a run still in flight answers 409.
func (h *AnalysisHandlers) GetAnalysisResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "analysis not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load analysis", err)
		return
	}

	switch job.Status {
	case types.JobCompleted:
		respondJSON(w, http.StatusOK, job.Results)
	case types.JobFailed:
		respondError(w, http.StatusConflict, "analysis failed", errors.New(job.Error))
	default:
		respondError(w, http.StatusConflict, "analysis is not finished", nil)
	}
}

// ListAnalyses handles GET /api/analyses?project_id=N&limit=M.
func (h *AnalysisHandlers) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	projectID := parseInt(r.URL.Query().Get("project_id"), 0)
	if projectID == 0 {
		respondError(w, http.StatusBadRequest, "project_id is required", nil)
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}

	jobs, err := h.service.ListJobs(r.Context(), projectID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list analyses", err)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobResponse(job))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": responses,
		"total":    len(responses),
	})
}
